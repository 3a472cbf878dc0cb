package annotations

import (
	"fmt"
	"strings"
)

// AnnotationError is implemented by every error the parser, registry and
// validator return. Error() carries the location and message; the hint is
// only available through Suggestion.
type AnnotationError interface {
	error
	Location() SourceLocation
	Suggestion() string
	Code() ErrorCode
}

// ErrorCode classifies annotation errors
type ErrorCode int

const (
	SyntaxErrorCode ErrorCode = iota
	ValidationErrorCode
	SchemaErrorCode
	RegistrationErrorCode
)

var errorCodeNames = map[ErrorCode]string{
	SyntaxErrorCode:       "syntax",
	ValidationErrorCode:   "validation",
	SchemaErrorCode:       "schema",
	RegistrationErrorCode: "registration",
}

func (e ErrorCode) String() string {
	if name, ok := errorCodeNames[e]; ok {
		return name
	}
	return "unknown"
}

func format(code ErrorCode, loc SourceLocation, msg string) string {
	if loc.File == "" {
		return fmt.Sprintf("%s error: %s", code, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", loc, code, msg)
}

// ValidationError reports a parameter value the schema rejects
type ValidationError struct {
	Parameter string
	Expected  string
	Actual    string
	Reason    string // set when a parameter validator rejected the value
	Loc       SourceLocation
	Hint      string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return format(ValidationErrorCode, e.Loc, fmt.Sprintf("parameter '%s': %s", e.Parameter, e.Reason))
	}
	return format(ValidationErrorCode, e.Loc,
		fmt.Sprintf("parameter '%s': expected %s, got %s", e.Parameter, e.Expected, e.Actual))
}

func (e *ValidationError) Location() SourceLocation { return e.Loc }
func (e *ValidationError) Suggestion() string       { return e.Hint }
func (e *ValidationError) Code() ErrorCode          { return ValidationErrorCode }

// SyntaxError reports annotation text that does not lex or parse
type SyntaxError struct {
	Msg  string
	Loc  SourceLocation
	Hint string
}

func (e *SyntaxError) Error() string            { return format(SyntaxErrorCode, e.Loc, e.Msg) }
func (e *SyntaxError) Location() SourceLocation { return e.Loc }
func (e *SyntaxError) Suggestion() string       { return e.Hint }
func (e *SyntaxError) Code() ErrorCode          { return SyntaxErrorCode }

// SchemaError reports an annotation that breaks its schema: wrong target,
// unknown or missing parameter
type SchemaError struct {
	Msg  string
	Loc  SourceLocation
	Hint string
}

func (e *SchemaError) Error() string            { return format(SchemaErrorCode, e.Loc, e.Msg) }
func (e *SchemaError) Location() SourceLocation { return e.Loc }
func (e *SchemaError) Suggestion() string       { return e.Hint }
func (e *SchemaError) Code() ErrorCode          { return SchemaErrorCode }

// RegistrationError reports a schema that cannot be registered
type RegistrationError struct {
	Msg  string
	Loc  SourceLocation
	Hint string
}

func (e *RegistrationError) Error() string            { return format(RegistrationErrorCode, e.Loc, e.Msg) }
func (e *RegistrationError) Location() SourceLocation { return e.Loc }
func (e *RegistrationError) Suggestion() string       { return e.Hint }
func (e *RegistrationError) Code() ErrorCode          { return RegistrationErrorCode }

// MultipleAnnotationErrors collects the errors found on one annotation
type MultipleAnnotationErrors struct {
	Errors []AnnotationError
}

func (e *MultipleAnnotationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "multiple annotation errors (%d total):", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err)
	}
	return b.String()
}

// Unwrap exposes the members to errors.Is and errors.As
func (e *MultipleAnnotationErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

// GetByType returns the members with the given code
func (e *MultipleAnnotationErrors) GetByType(code ErrorCode) []AnnotationError {
	var out []AnnotationError
	for _, err := range e.Errors {
		if err.Code() == code {
			out = append(out, err)
		}
	}
	return out
}

// HasType reports whether any member has the given code
func (e *MultipleAnnotationErrors) HasType(code ErrorCode) bool {
	return len(e.GetByType(code)) > 0
}

// NewSyntaxErrorWithContext creates a syntax error whose hint depends on the
// failing annotation text
func NewSyntaxErrorWithContext(msg string, loc SourceLocation, context string) *SyntaxError {
	return &SyntaxError{
		Msg:  msg,
		Loc:  loc,
		Hint: generateSyntaxSuggestion(msg, context),
	}
}

// NewSchemaErrorWithContext creates a schema error with a hint for annotationType
func NewSchemaErrorWithContext(msg string, loc SourceLocation, annotationType AnnotationType) *SchemaError {
	return &SchemaError{
		Msg:  msg,
		Loc:  loc,
		Hint: generateSchemaSuggestion(msg, annotationType),
	}
}

func generateSyntaxSuggestion(msg, context string) string {
	msg = strings.ToLower(msg)
	context = strings.ToLower(context)

	switch {
	case strings.Contains(msg, "prefix"):
		return "Annotations start with '//ee::' (note the double colon)"
	case strings.Contains(msg, "unknown annotation type"):
		return "Use one of: " + strings.Join(knownTypeNames(), ", ")
	case strings.Contains(msg, "too many positional"):
		return "Only the leading value is positional; name the rest as -Param=value"
	case strings.Contains(msg, "unexpected"):
		switch {
		case strings.Contains(context, "ee::ejb"):
			return "Reference format: //ee::ejb <name> -Type=pkg.View [-Link=Component | -Lookup=name]"
		case strings.Contains(context, "ee::interceptors"):
			return "Interceptors format: //ee::interceptors pkg.A,pkg.B [-ExcludeDefault] [-ExcludeClass]"
		}
		return "Parameters are written -Name=value, -Name=a,b or -Flag"
	default:
		return "Check annotation syntax against the documented examples"
	}
}

func generateSchemaSuggestion(msg string, annotationType AnnotationType) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "not allowed on"):
		schema := schemaOf(annotationType)
		return fmt.Sprintf("%s annotations belong on a %s declaration", annotationType, schema.Targets)
	case strings.Contains(msg, "not registered"):
		return fmt.Sprintf("Annotation type '%s' is not registered. Register its schema first", annotationType)
	default:
		return "Check annotation schema and parameter definitions"
	}
}

func knownTypeNames() []string {
	names := make([]string, 0, len(annotationNames))
	for _, schema := range GetBuiltinSchemas() {
		names = append(names, schema.Type.String())
	}
	return names
}

func schemaOf(t AnnotationType) AnnotationSchema {
	for _, schema := range GetBuiltinSchemas() {
		if schema.Type == t {
			return schema
		}
	}
	return AnnotationSchema{Type: t}
}
