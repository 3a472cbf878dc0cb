package errors

import "fmt"

// WrapWithOperation wraps cause as a failed operation on item
func WrapWithOperation(operation, item string, cause error) *BaseError {
	return Wrap(UnknownErrorCode, fmt.Sprintf("failed to %s %s", operation, item), cause)
}

// WrapRegisterError wraps cause as a failed registration
func WrapRegisterError(kind, name string, cause error) *RegistrationError {
	err := NewRegistrationError(kind, name, cause.Error())
	err.WithCause(cause)
	return err
}

// WrapParseError wraps cause as a parse failure of file
func WrapParseError(file string, cause error) *SyntaxError {
	return &SyntaxError{
		BaseError: Wrap(SyntaxErrorCode, fmt.Sprintf("failed to parse %s", file), cause),
		File:      file,
	}
}

// WrapFileSystemError wraps cause as a failed operation on path
func WrapFileSystemError(operation, path string, cause error) *BaseError {
	return Wrap(FileSystemErrorCode, fmt.Sprintf("failed to %s '%s'", operation, path), cause).
		WithContext("operation", operation).
		WithContext("path", path)
}

// WrapDependencyError wraps cause as an unresolvable dependency
func WrapDependencyError(kind, name string, cause error) *BaseError {
	return Wrap(DependencyErrorCode, fmt.Sprintf("cannot resolve %s dependency %s", kind, name), cause).
		WithContext("dependency", name)
}

// DependencyError reports a dependency that exists but cannot be used
func DependencyError(kind, name, message string) *BaseError {
	return New(DependencyErrorCode, fmt.Sprintf("%s dependency %s: %s", kind, name, message)).
		WithContext("dependency", name)
}

// AddToMultiple adds err to *multiple, allocating it on first use
func AddToMultiple(multiple **MultipleErrors, err ContainerError) {
	if *multiple == nil {
		*multiple = NewMultipleErrors()
	}
	(*multiple).Add(err)
}
