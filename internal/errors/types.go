// Package errors is the error taxonomy shared by the metadata pipeline and the
// runtime. Every error carries a code, and optionally a source location,
// context values and hints for the user.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ContainerError is implemented by every error in the taxonomy
type ContainerError interface {
	error
	ErrorCode() ErrorCode
	Location() SourceLocation
	Context() map[string]interface{}
	Suggestions() []string
	Unwrap() error
}

// ErrorCode classifies a ContainerError
type ErrorCode int

const (
	UnknownErrorCode ErrorCode = iota

	// metadata
	SyntaxErrorCode
	ValidationErrorCode
	RegistrationErrorCode
	SchemaErrorCode
	FileSystemErrorCode

	// deployment
	DeploymentErrorCode
	ClassNotFoundErrorCode
	ConfigurationErrorCode
	DependencyErrorCode

	// runtime
	IllegalStateErrorCode
	TimeoutErrorCode
	CleanupErrorCode
)

var codeNames = [...]string{
	UnknownErrorCode:       "Unknown Error",
	SyntaxErrorCode:        "Syntax Error",
	ValidationErrorCode:    "Validation Error",
	RegistrationErrorCode:  "Registration Error",
	SchemaErrorCode:        "Schema Error",
	FileSystemErrorCode:    "File System Error",
	DeploymentErrorCode:    "Deployment Error",
	ClassNotFoundErrorCode: "Class Not Found",
	ConfigurationErrorCode: "Configuration Error",
	DependencyErrorCode:    "Dependency Error",
	IllegalStateErrorCode:  "Illegal State",
	TimeoutErrorCode:       "Timeout",
	CleanupErrorCode:       "Cleanup Error",
}

func (e ErrorCode) String() string {
	if e < 0 || int(e) >= len(codeNames) {
		return codeNames[UnknownErrorCode]
	}
	return codeNames[e]
}

// SourceLocation points into a Go source file or a descriptor. Line and
// Column are 1-based; zero means unknown.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (s SourceLocation) String() string {
	switch {
	case s.File == "":
		return "unknown location"
	case s.Line == 0:
		return s.File
	case s.Column == 0:
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// IsEmpty reports whether no file is known
func (s SourceLocation) IsEmpty() bool {
	return s.File == ""
}

// BaseError is the common ContainerError implementation. The typed errors of
// this package embed it. Error() does not repeat the cause; use Unwrap or the
// diagnostic reporter to see the chain.
type BaseError struct {
	Code        ErrorCode
	Message     string
	Loc         SourceLocation
	Cause       error
	ContextData map[string]interface{}
	Hints       []string
}

func (e *BaseError) Error() string {
	if e.Loc.IsEmpty() {
		return e.Message
	}
	return e.Loc.String() + ": " + e.Message
}

func (e *BaseError) ErrorCode() ErrorCode     { return e.Code }
func (e *BaseError) Location() SourceLocation { return e.Loc }
func (e *BaseError) Suggestions() []string    { return e.Hints }
func (e *BaseError) Unwrap() error            { return e.Cause }

// Context returns the context values, never nil
func (e *BaseError) Context() map[string]interface{} {
	if e.ContextData == nil {
		return map[string]interface{}{}
	}
	return e.ContextData
}

// WithLocation sets the location
func (e *BaseError) WithLocation(loc SourceLocation) *BaseError {
	e.Loc = loc
	return e
}

// WithCause sets the wrapped error
func (e *BaseError) WithCause(cause error) *BaseError {
	e.Cause = cause
	return e
}

// WithContext records a context value shown by verbose reports
func (e *BaseError) WithContext(key string, value interface{}) *BaseError {
	if e.ContextData == nil {
		e.ContextData = make(map[string]interface{})
	}
	e.ContextData[key] = value
	return e
}

// WithSuggestion appends a hint
func (e *BaseError) WithSuggestion(suggestion string) *BaseError {
	e.Hints = append(e.Hints, suggestion)
	return e
}

// New creates an error with code and message
func New(code ErrorCode, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

// Newf is New with a format string
func Newf(code ErrorCode, format string, args ...interface{}) *BaseError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an error with code and message wrapping cause
func Wrap(code ErrorCode, message string, cause error) *BaseError {
	return &BaseError{Code: code, Message: message, Cause: cause}
}

// Wrapf is Wrap with a format string
func Wrapf(code ErrorCode, cause error, format string, args ...interface{}) *BaseError {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// MultipleErrors aggregates independent failures, such as every broken
// component of a unit or every bad annotation of a package. It reports the
// code and location of its first member.
type MultipleErrors struct {
	Errors []ContainerError
}

func (e *MultipleErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	lines := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		lines[i] = fmt.Sprintf("  %d. %s", i+1, err)
	}
	return fmt.Sprintf("multiple errors (%d total):\n%s", len(e.Errors), strings.Join(lines, "\n"))
}

func (e *MultipleErrors) ErrorCode() ErrorCode {
	if len(e.Errors) == 0 {
		return UnknownErrorCode
	}
	return e.Errors[0].ErrorCode()
}

func (e *MultipleErrors) Location() SourceLocation {
	if len(e.Errors) == 0 {
		return SourceLocation{}
	}
	return e.Errors[0].Location()
}

// Context merges member context, keys prefixed with the member index
func (e *MultipleErrors) Context() map[string]interface{} {
	out := make(map[string]interface{})
	for i, err := range e.Errors {
		for k, v := range err.Context() {
			out[fmt.Sprintf("error_%d_%s", i, k)] = v
		}
	}
	return out
}

func (e *MultipleErrors) Suggestions() []string {
	var out []string
	for _, err := range e.Errors {
		out = append(out, err.Suggestions()...)
	}
	return out
}

// Unwrap returns the first member; Is and As search all of them
func (e *MultipleErrors) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// Add appends err
func (e *MultipleErrors) Add(err ContainerError) {
	e.Errors = append(e.Errors, err)
}

// IsEmpty reports whether nothing was collected
func (e *MultipleErrors) IsEmpty() bool { return len(e.Errors) == 0 }

// Count returns the number of members
func (e *MultipleErrors) Count() int { return len(e.Errors) }

// GetByCode returns the members with code
func (e *MultipleErrors) GetByCode(code ErrorCode) []ContainerError {
	var out []ContainerError
	for _, err := range e.Errors {
		if err.ErrorCode() == code {
			out = append(out, err)
		}
	}
	return out
}

// HasCode reports whether a direct member has code
func (e *MultipleErrors) HasCode(code ErrorCode) bool {
	return len(e.GetByCode(code)) > 0
}

func (e *MultipleErrors) Is(target error) bool {
	for _, err := range e.Errors {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *MultipleErrors) As(target interface{}) bool {
	for _, err := range e.Errors {
		if stderrors.As(err, target) {
			return true
		}
	}
	return false
}

// ErrorOrNil returns nil for a nil or empty collection, so callers can
// return it directly
func (e *MultipleErrors) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// NewMultipleErrors creates an empty collection
func NewMultipleErrors() *MultipleErrors {
	return &MultipleErrors{}
}

// CollectErrors creates a collection holding errs
func CollectErrors(errs ...ContainerError) *MultipleErrors {
	return &MultipleErrors{Errors: errs}
}

// HasCode reports whether err, anything it wraps, or any member of an
// aggregate on the way carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if multi, ok := err.(*MultipleErrors); ok {
			for _, inner := range multi.Errors {
				if HasCode(inner, code) {
					return true
				}
			}
			return false
		}
		if ce, ok := err.(ContainerError); ok && ce.ErrorCode() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
