package annotations

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SchemaValidator defines the interface for validating annotations against their schemas
type SchemaValidator interface {
	// Validate annotation against its schema
	Validate(annotation *ParsedAnnotation, schema AnnotationSchema) error

	// ApplyDefaults applies default values for missing optional parameters
	ApplyDefaults(annotation *ParsedAnnotation, schema AnnotationSchema) error

	// TransformParameters converts raw parameter values to their schema types
	TransformParameters(annotation *ParsedAnnotation, schema AnnotationSchema) error
}

type validator struct{}

// NewValidator creates a new schema validator
func NewValidator() SchemaValidator {
	return &validator{}
}

// Validate validates an annotation against its schema. Every problem is
// reported, not only the first.
func (v *validator) Validate(annotation *ParsedAnnotation, schema AnnotationSchema) error {
	var errs []AnnotationError

	for _, paramName := range sortedKeys(schema.Parameters) {
		paramSpec := schema.Parameters[paramName]
		if !paramSpec.Required {
			continue
		}
		if _, exists := annotation.Parameters[paramName]; !exists {
			errs = append(errs, &ValidationError{
				Parameter: paramName,
				Expected:  fmt.Sprintf("required parameter of type %s", paramSpec.Type),
				Actual:    "missing",
				Loc:       annotation.Location,
				Hint:      fmt.Sprintf("Add -%s=<value> to the annotation", paramName),
			})
		}
	}

	for _, paramName := range sortedKeys(annotation.Parameters) {
		paramValue := annotation.Parameters[paramName]
		paramSpec, exists := schema.Parameters[paramName]
		if !exists {
			errs = append(errs, &ValidationError{
				Parameter: paramName,
				Expected:  "known parameter",
				Actual:    fmt.Sprintf("unknown parameter '%s'", paramName),
				Loc:       annotation.Location,
				Hint:      suggestParameters(schema),
			})
			continue
		}

		if !isCorrectType(paramValue, paramSpec.Type) {
			errs = append(errs, &ValidationError{
				Parameter: paramName,
				Expected:  paramSpec.Type.String(),
				Actual:    fmt.Sprintf("%T", paramValue),
				Loc:       annotation.Location,
				Hint:      fmt.Sprintf("Provide a %s value", paramSpec.Type),
			})
			continue
		}

		if paramSpec.Validator != nil {
			if err := paramSpec.Validator(paramValue); err != nil {
				errs = append(errs, &ValidationError{
					Parameter: paramName,
					Expected:  "valid value",
					Actual:    fmt.Sprintf("%v", paramValue),
					Reason:    err.Error(),
					Loc:       annotation.Location,
					Hint:      fmt.Sprintf("Change the value of -%s", paramName),
				})
			}
		}
	}

	for _, customValidator := range schema.Validators {
		if err := customValidator(annotation); err != nil {
			errs = append(errs, &SchemaError{
				Msg:  err.Error(),
				Loc:  annotation.Location,
				Hint: "Check annotation parameters and their combinations",
			})
		}
	}

	if len(errs) > 0 {
		return &MultipleAnnotationErrors{Errors: errs}
	}
	return nil
}

// ApplyDefaults applies default values for missing optional parameters
func (v *validator) ApplyDefaults(annotation *ParsedAnnotation, schema AnnotationSchema) error {
	if annotation.Parameters == nil {
		annotation.Parameters = make(map[string]any)
	}
	for paramName, paramSpec := range schema.Parameters {
		if _, exists := annotation.Parameters[paramName]; !exists && paramSpec.DefaultValue != nil {
			annotation.Parameters[paramName] = paramSpec.DefaultValue
		}
	}
	return nil
}

// TransformParameters converts raw parameter values to their schema types
func (v *validator) TransformParameters(annotation *ParsedAnnotation, schema AnnotationSchema) error {
	for paramName, paramValue := range annotation.Parameters {
		paramSpec, exists := schema.Parameters[paramName]
		if !exists || isCorrectType(paramValue, paramSpec.Type) {
			continue
		}

		transformed, err := transformParameterValue(paramValue, paramSpec.Type)
		if err != nil {
			return &ValidationError{
				Parameter: paramName,
				Expected:  fmt.Sprintf("value convertible to %s", paramSpec.Type),
				Actual:    fmt.Sprintf("%v (%T)", paramValue, paramValue),
				Loc:       annotation.Location,
				Hint:      fmt.Sprintf("Ensure the value can be converted to %s", paramSpec.Type),
			}
		}
		annotation.Parameters[paramName] = transformed
	}
	return nil
}

func isCorrectType(value any, targetType ParameterType) bool {
	switch targetType {
	case StringType:
		_, ok := value.(string)
		return ok
	case BoolType:
		_, ok := value.(bool)
		return ok
	case IntType:
		_, ok := value.(int)
		return ok
	case StringSliceType:
		_, ok := value.([]string)
		return ok
	case DurationType:
		_, ok := value.(time.Duration)
		return ok
	default:
		return false
	}
}

func transformParameterValue(value any, targetType ParameterType) (any, error) {
	if targetType == StringSliceType {
		return ConvertToStringSlice(value)
	}
	strValue, ok := value.(string)
	if !ok {
		if list, isList := value.([]string); isList && targetType == StringType {
			return strings.Join(list, ","), nil
		}
		return nil, fmt.Errorf("cannot convert %T to %s", value, targetType)
	}

	switch targetType {
	case StringType:
		return strValue, nil
	case BoolType:
		return strconv.ParseBool(strValue)
	case IntType:
		return strconv.Atoi(strValue)
	case DurationType:
		if n, err := strconv.Atoi(strValue); err == nil {
			// bare numbers are milliseconds
			return time.Duration(n) * time.Millisecond, nil
		}
		return time.ParseDuration(strValue)
	default:
		return nil, fmt.Errorf("unsupported target type: %d", targetType)
	}
}

func suggestParameters(schema AnnotationSchema) string {
	names := sortedKeys(schema.Parameters)
	if len(names) == 0 {
		return fmt.Sprintf("%s annotation takes no parameters", schema.Type)
	}
	return fmt.Sprintf("%s annotation supports: %s", schema.Type, strings.Join(names, ", "))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
