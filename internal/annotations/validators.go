package annotations

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	componentNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	classNamePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// ValidateComponentName checks that a component name is a plain identifier
func ValidateComponentName(v any) error {
	name := v.(string)
	if !componentNamePattern.MatchString(name) {
		return fmt.Errorf("component name must be an identifier, got '%s'", name)
	}
	return nil
}

// ValidateClassName checks a dotted class name such as bank.CounterLocal
func ValidateClassName(v any) error {
	name := v.(string)
	if !classNamePattern.MatchString(name) {
		return fmt.Errorf("must be a dotted class name like pkg.Type, got '%s'", name)
	}
	return nil
}

// ValidateClassNames checks every entry of a class name list
func ValidateClassNames(v any) error {
	for _, name := range v.([]string) {
		if err := ValidateClassName(name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNamingName rejects empty names and names with whitespace
func ValidateNamingName(v any) error {
	name := v.(string)
	if name == "" || strings.ContainsAny(name, " \t") {
		return fmt.Errorf("must be a non-empty naming name, got '%s'", name)
	}
	if strings.HasSuffix(name, "/") {
		return fmt.Errorf("naming name must not end with '/', got '%s'", name)
	}
	return nil
}

// ValidatePositive requires an integer greater than zero
func ValidatePositive(v any) error {
	if n := v.(int); n <= 0 {
		return fmt.Errorf("must be greater than zero, got %d", n)
	}
	return nil
}

// ValidateNonNegativeDuration rejects negative durations
func ValidateNonNegativeDuration(v any) error {
	if d := v.(time.Duration); d < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}
	return nil
}

// NameParameterSpec returns the optional component name parameter. The struct
// name is used when it is omitted.
func NameParameterSpec() ParameterSpec {
	return ParameterSpec{
		Type:        StringType,
		Description: "Component name, defaults to the struct name",
		Validator:   ValidateComponentName,
	}
}

// ViewsParameterSpec returns the standard Views parameter specification
func ViewsParameterSpec() ParameterSpec {
	return ParameterSpec{
		Type:        StringSliceType,
		Description: "Comma-separated list of local view class names",
		Validator:   ValidateClassNames,
	}
}

// NamingParameterSpec returns the parameter that selects a component-private java:comp
func NamingParameterSpec() ParameterSpec {
	return ParameterSpec{
		Type:         StringType,
		DefaultValue: "module",
		Description:  "java:comp namespace: 'module' (shared, default) or 'component'",
		Validator: func(v any) error {
			mode := v.(string)
			if mode != "module" && mode != "component" {
				return fmt.Errorf("must be 'module' or 'component', got '%s'", mode)
			}
			return nil
		},
	}
}

// ClassesParameterSpec returns the interceptor class list parameter
func ClassesParameterSpec() ParameterSpec {
	return ParameterSpec{
		Type:        StringSliceType,
		Description: "Comma-separated interceptor class names in invocation order",
		Validator:   ValidateClassNames,
	}
}

// FlagParameterSpec returns a boolean flag that defaults to false
func FlagParameterSpec(description string) ParameterSpec {
	return ParameterSpec{
		Type:         BoolType,
		DefaultValue: false,
		Description:  description,
	}
}
