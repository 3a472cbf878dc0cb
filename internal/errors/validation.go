package errors

import "fmt"

// ValidationError reports metadata or a deployment unit that is structurally
// wrong: a missing name, a nil module, a component in the wrong unit
type ValidationError struct {
	*BaseError
	Field    string
	Expected string
	Actual   string
}

// NewValidationError creates a validation error for field
func NewValidationError(field, expected, actual string) *ValidationError {
	return &ValidationError{
		BaseError: New(ValidationErrorCode, fmt.Sprintf("invalid %s: expected %s, got %s", field, expected, actual)).
			WithContext("field", field),
		Field:    field,
		Expected: expected,
		Actual:   actual,
	}
}

// WithLocation points the error at a source position
func (e *ValidationError) WithLocation(loc SourceLocation) *ValidationError {
	e.BaseError.WithLocation(loc)
	return e
}

// WithSuggestion adds a hint
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.BaseError.WithSuggestion(suggestion)
	return e
}

// SyntaxError reports a source or descriptor file that does not parse
type SyntaxError struct {
	*BaseError
	File string
}

// WithLocation points the error at a source position
func (e *SyntaxError) WithLocation(loc SourceLocation) *SyntaxError {
	e.BaseError.WithLocation(loc)
	return e
}

// RegistrationError reports a name that is already taken, such as a second
// service or deployment with the same name
type RegistrationError struct {
	*BaseError
	Kind   string
	Name   string
	Reason string
}

// NewRegistrationError creates a registration error for the kind of thing
// named name
func NewRegistrationError(kind, name, reason string) *RegistrationError {
	return &RegistrationError{
		BaseError: New(RegistrationErrorCode, fmt.Sprintf("cannot register %s %s: %s", kind, name, reason)),
		Kind:      kind,
		Name:      name,
		Reason:    reason,
	}
}
