package annotations

import (
	"fmt"
	"strings"
	"time"
)

// AnnotationType represents the type of annotation
type AnnotationType int

const (
	StatelessAnnotation AnnotationType = iota
	StatefulAnnotation
	SingletonAnnotation
	ManagedAnnotation
	InterceptorsAnnotation
	InjectAnnotation
	EJBRefAnnotation
	PostConstructAnnotation
	PreDestroyAnnotation
	AroundInvokeAnnotation
	AfterBeginAnnotation
	BeforeCompletionAnnotation
	AfterCompletionAnnotation
)

var annotationNames = map[AnnotationType]string{
	StatelessAnnotation:        "stateless",
	StatefulAnnotation:         "stateful",
	SingletonAnnotation:        "singleton",
	ManagedAnnotation:          "managed",
	InterceptorsAnnotation:     "interceptors",
	InjectAnnotation:           "inject",
	EJBRefAnnotation:           "ejb",
	PostConstructAnnotation:    "postconstruct",
	PreDestroyAnnotation:       "predestroy",
	AroundInvokeAnnotation:     "aroundinvoke",
	AfterBeginAnnotation:       "afterbegin",
	BeforeCompletionAnnotation: "beforecompletion",
	AfterCompletionAnnotation:  "aftercompletion",
}

// String returns the string representation of the annotation type
func (a AnnotationType) String() string {
	if name, ok := annotationNames[a]; ok {
		return name
	}
	return "unknown"
}

// IsComponent reports whether the annotation declares a component
func (a AnnotationType) IsComponent() bool {
	return a >= StatelessAnnotation && a <= ManagedAnnotation
}

// ParseAnnotationType converts string to AnnotationType. Case is ignored, so
// PostConstruct and postconstruct name the same annotation.
func ParseAnnotationType(s string) (AnnotationType, error) {
	lower := strings.ToLower(s)
	for t, name := range annotationNames {
		if name == lower {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown annotation type: %s", s)
}

// Target is the kind of declaration an annotation may be attached to
type Target int

const (
	TypeTarget Target = 1 << iota
	MethodTarget
	FieldTarget
)

func (t Target) String() string {
	var parts []string
	if t&TypeTarget != 0 {
		parts = append(parts, "type")
	}
	if t&MethodTarget != 0 {
		parts = append(parts, "method")
	}
	if t&FieldTarget != 0 {
		parts = append(parts, "field")
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, "|")
}

// SourceLocation represents the location of an annotation in source code
type SourceLocation struct {
	File   string // File path
	Line   int    // Line number (1-based)
	Column int    // Column number (1-based)
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// ParsedAnnotation represents a fully parsed annotation with type-safe parameters
type ParsedAnnotation struct {
	Type       AnnotationType // Annotation type enum
	Target     string         // Declaration the annotation is attached to
	Parameters map[string]any // Typed parameters
	Location   SourceLocation // Source location
	Raw        string         // Original annotation text
}

// GetString returns a string parameter value with optional default
func (p *ParsedAnnotation) GetString(paramName string, defaultValue ...string) string {
	if value, ok := p.Parameters[paramName].(string); ok {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// GetBool returns a boolean parameter value with optional default
func (p *ParsedAnnotation) GetBool(paramName string, defaultValue ...bool) bool {
	if value, ok := p.Parameters[paramName].(bool); ok {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}

// GetInt returns an integer parameter value with optional default
func (p *ParsedAnnotation) GetInt(paramName string, defaultValue ...int) int {
	if value, ok := p.Parameters[paramName].(int); ok {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// GetDuration returns a duration parameter value with optional default
func (p *ParsedAnnotation) GetDuration(paramName string, defaultValue ...time.Duration) time.Duration {
	if value, ok := p.Parameters[paramName].(time.Duration); ok {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// GetStringSlice returns a string slice parameter value with optional default
func (p *ParsedAnnotation) GetStringSlice(paramName string, defaultValue ...[]string) []string {
	if value, ok := p.Parameters[paramName].([]string); ok {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}

// HasParameter checks if a parameter exists
func (p *ParsedAnnotation) HasParameter(paramName string) bool {
	_, exists := p.Parameters[paramName]
	return exists
}

// ParameterType represents the type of a parameter
type ParameterType int

const (
	StringType ParameterType = iota
	BoolType
	IntType
	StringSliceType
	DurationType
)

// String returns the string representation of the parameter type
func (p ParameterType) String() string {
	switch p {
	case StringType:
		return "string"
	case BoolType:
		return "bool"
	case IntType:
		return "int"
	case StringSliceType:
		return "[]string"
	case DurationType:
		return "duration"
	default:
		return "unknown"
	}
}

// ParameterSpec defines the specification for an annotation parameter
type ParameterSpec struct {
	Type         ParameterType   // Parameter type
	Required     bool            // Whether parameter is required
	DefaultValue any             // Default value if not provided
	Description  string          // Parameter description
	Validator    func(any) error // Custom validator function
}

// CustomValidator represents a custom validation function for annotations
type CustomValidator func(*ParsedAnnotation) error

// AnnotationSchema defines the schema for an annotation type
type AnnotationSchema struct {
	Type        AnnotationType           // Annotation type enum
	Description string                   // Human-readable description
	Targets     Target                   // Declarations the annotation may annotate
	Positional  []string                 // Parameter names filled by bare leading values
	Parameters  map[string]ParameterSpec // Parameter specifications
	Validators  []CustomValidator        // Custom validation functions
	Examples    []string                 // Usage examples
}

// ConvertToStringSlice converts a parsed value to a string slice
func ConvertToStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []string", value)
	}
}
