package errors

import "fmt"

// DeploymentError reports a failure while processing one component of a deployment unit.
// It aborts that component only; siblings in the same unit keep deploying.
type DeploymentError struct {
	*BaseError
	Component      string // component being processed
	DeploymentUnit string // owning deployment unit
}

// NewDeploymentError creates a new deployment processing error
func NewDeploymentError(component, unit, message string) *DeploymentError {
	return &DeploymentError{
		BaseError: New(DeploymentErrorCode, message).
			WithContext("component", component).
			WithContext("deployment", unit),
		Component:      component,
		DeploymentUnit: unit,
	}
}

// WrapDeploymentError wraps cause as a processing failure of component within unit
func WrapDeploymentError(component, unit string, cause error) *DeploymentError {
	message := fmt.Sprintf("failed to process component '%s' in deployment '%s'", component, unit)
	return &DeploymentError{
		BaseError: Wrap(DeploymentErrorCode, message, cause).
			WithContext("component", component).
			WithContext("deployment", unit),
		Component:      component,
		DeploymentUnit: unit,
	}
}

// Error includes the cause so log lines carry the full chain
func (e *DeploymentError) Error() string {
	if e.Cause == nil {
		return e.BaseError.Error()
	}
	return fmt.Sprintf("%s: %v", e.BaseError.Error(), e.Cause)
}

// WithSuggestion adds a helpful suggestion
func (e *DeploymentError) WithSuggestion(suggestion string) *DeploymentError {
	e.BaseError.WithSuggestion(suggestion)
	return e
}

// WithCause sets the underlying error
func (e *DeploymentError) WithCause(cause error) *DeploymentError {
	e.BaseError.WithCause(cause)
	return e
}

// IllegalStateError reports API misuse: invoking before start, double-creating a singleton,
// releasing an instance that was never checked out.
type IllegalStateError struct {
	*BaseError
	Operation string
	State     string
}

// NewIllegalStateError creates a new illegal state error
func NewIllegalStateError(operation, state, message string) *IllegalStateError {
	return &IllegalStateError{
		BaseError: New(IllegalStateErrorCode, message).
			WithContext("operation", operation).
			WithContext("state", state),
		Operation: operation,
		State:     state,
	}
}

// IllegalStatef creates an illegal state error with a formatted message and no state detail
func IllegalStatef(operation, format string, args ...interface{}) *IllegalStateError {
	return NewIllegalStateError(operation, "", fmt.Sprintf(format, args...))
}

// WithCause adds an underlying error cause
func (e *IllegalStateError) WithCause(cause error) *IllegalStateError {
	e.BaseError.WithCause(cause)
	return e
}

// TimeoutError reports that a bounded wait expired
type TimeoutError struct {
	*BaseError
	Resource string
	Waited   string
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(resource, waited string, cause error) *TimeoutError {
	message := fmt.Sprintf("timed out after %s waiting for %s", waited, resource)
	return &TimeoutError{
		BaseError: Wrap(TimeoutErrorCode, message, cause).
			WithContext("resource", resource),
		Resource: resource,
		Waited:   waited,
	}
}

// ClassNotFoundError reports a class name that no resolver could load
type ClassNotFoundError struct {
	*BaseError
	ClassName string
	Loader    string
}

// NewClassNotFoundError creates a new class-not-found error
func NewClassNotFoundError(className, loader string, cause error) *ClassNotFoundError {
	message := fmt.Sprintf("class '%s' not found in loader '%s'", className, loader)
	return &ClassNotFoundError{
		BaseError: Wrap(ClassNotFoundErrorCode, message, cause).
			WithContext("class", className).
			WithContext("loader", loader),
		ClassName: className,
		Loader:    loader,
	}
}

// CleanupError reports a teardown failure. These are logged and collected, never fatal.
type CleanupError struct {
	*BaseError
	Resource string
}

// NewCleanupError creates a new cleanup error
func NewCleanupError(resource string, cause error) *CleanupError {
	message := fmt.Sprintf("failed to clean up %s: %v", resource, cause)
	return &CleanupError{
		BaseError: Wrap(CleanupErrorCode, message, cause).
			WithContext("resource", resource),
		Resource: resource,
	}
}
