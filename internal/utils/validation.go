package utils

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Validator represents a validation function
type Validator[T any] func(T) error

// ValidatorChain runs validators in order and stops at the first failure
type ValidatorChain[T any] struct {
	validators []Validator[T]
}

// NewValidatorChain creates a new validator chain
func NewValidatorChain[T any](validators ...Validator[T]) *ValidatorChain[T] {
	return &ValidatorChain[T]{validators: validators}
}

// Add adds a validator to the chain
func (vc *ValidatorChain[T]) Add(validator Validator[T]) *ValidatorChain[T] {
	vc.validators = append(vc.validators, validator)
	return vc
}

// Validate runs all validators in the chain
func (vc *ValidatorChain[T]) Validate(value T) error {
	for _, validator := range vc.validators {
		if err := validator(value); err != nil {
			return err
		}
	}
	return nil
}

// NotEmpty validates that a string is not empty
func NotEmpty(field string) Validator[string] {
	return func(value string) error {
		if value == "" {
			return ValidationError{Field: field, Value: value, Message: "cannot be empty"}
		}
		return nil
	}
}

// IsOneOf validates that a value is one of the allowed values
func IsOneOf[T comparable](field string, allowed ...T) Validator[T] {
	return func(value T) error {
		for _, allowedValue := range allowed {
			if value == allowedValue {
				return nil
			}
		}
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be one of: %v", allowed),
		}
	}
}

// AtLeast validates that a number is not below min
func AtLeast[T ~int | ~int64](field string, min T) Validator[T] {
	return func(value T) error {
		if value < min {
			return ValidationError{
				Field:   field,
				Value:   value,
				Message: fmt.Sprintf("must be at least %d", min),
			}
		}
		return nil
	}
}

// Custom creates a custom validator with a predicate
func Custom[T any](field string, message string, validatorFunc func(T) bool) Validator[T] {
	return func(value T) error {
		if !validatorFunc(value) {
			return ValidationError{Field: field, Value: value, Message: message}
		}
		return nil
	}
}

// Conditional applies validator only when condition holds
func Conditional[T any](condition func(T) bool, validator Validator[T]) Validator[T] {
	return func(value T) error {
		if condition(value) {
			return validator(value)
		}
		return nil
	}
}

// ValidateEach validates each element of a slice
func ValidateEach[T any](field string, itemValidator Validator[T]) Validator[[]T] {
	return func(values []T) error {
		for i, value := range values {
			if err := itemValidator(value); err != nil {
				return ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Value:   value,
					Message: err.Error(),
				}
			}
		}
		return nil
	}
}

// ValidateDuration validates a time.ParseDuration string that is not negative.
// The empty string is accepted.
func ValidateDuration(field string) Validator[string] {
	return func(value string) error {
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("not a duration: %v", err)}
		}
		if d < 0 {
			return ValidationError{Field: field, Value: value, Message: "must not be negative"}
		}
		return nil
	}
}

// ValidateListenAddress validates a host:port listen address. The host may be
// empty; the port must be numeric.
func ValidateListenAddress(field string) Validator[string] {
	return NewValidatorChain(
		NotEmpty(field),
		func(value string) error {
			_, port, err := net.SplitHostPort(value)
			if err != nil {
				return ValidationError{Field: field, Value: value, Message: err.Error()}
			}
			if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
				return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("invalid port %q", port)}
			}
			return nil
		},
	).Validate
}
