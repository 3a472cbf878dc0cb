package annotations

import (
	"fmt"
	"strings"
)

// Built-in annotation schemas

// StatelessAnnotationSchema defines the schema for //ee::stateless annotations
var StatelessAnnotationSchema = AnnotationSchema{
	Type:        StatelessAnnotation,
	Description: "Declares a pooled stateless session component",
	Targets:     TypeTarget,
	Positional:  []string{"Name"},
	Parameters: map[string]ParameterSpec{
		"Name":   NameParameterSpec(),
		"Views":  ViewsParameterSpec(),
		"Naming": NamingParameterSpec(),
		"MaxSize": {
			Type:        IntType,
			Description: "Maximum number of pooled instances",
			Validator:   ValidatePositive,
		},
		"Timeout": {
			Type:        DurationType,
			Description: "How long a caller waits for a free instance; 0 waits until cancelled",
			Validator:   ValidateNonNegativeDuration,
		},
		"PassThrough": FlagParameterSpec("Create a fresh instance per call instead of pooling"),
	},
	Examples: []string{
		"//ee::stateless",
		"//ee::stateless Counter -Views=bank.CounterLocal",
		"//ee::stateless -MaxSize=10 -Timeout=30s",
		"//ee::stateless Audit -PassThrough",
	},
}

// StatefulAnnotationSchema defines the schema for //ee::stateful annotations
var StatefulAnnotationSchema = AnnotationSchema{
	Type:        StatefulAnnotation,
	Description: "Declares a stateful session component, one instance per session",
	Targets:     TypeTarget,
	Positional:  []string{"Name"},
	Parameters: map[string]ParameterSpec{
		"Name":   NameParameterSpec(),
		"Views":  ViewsParameterSpec(),
		"Naming": NamingParameterSpec(),
	},
	Examples: []string{
		"//ee::stateful Cart -Views=shop.CartLocal",
	},
}

// SingletonAnnotationSchema defines the schema for //ee::singleton annotations
var SingletonAnnotationSchema = AnnotationSchema{
	Type:        SingletonAnnotation,
	Description: "Declares a singleton session component shared by all callers",
	Targets:     TypeTarget,
	Positional:  []string{"Name"},
	Parameters: map[string]ParameterSpec{
		"Name":    NameParameterSpec(),
		"Views":   ViewsParameterSpec(),
		"Naming":  NamingParameterSpec(),
		"Startup": FlagParameterSpec("Create the instance when the component starts"),
	},
	Examples: []string{
		"//ee::singleton Registry -Startup",
	},
}

// ManagedAnnotationSchema defines the schema for //ee::managed annotations
var ManagedAnnotationSchema = AnnotationSchema{
	Type:        ManagedAnnotation,
	Description: "Declares a plain managed bean, a fresh instance per reference",
	Targets:     TypeTarget,
	Positional:  []string{"Name"},
	Parameters: map[string]ParameterSpec{
		"Name":   NameParameterSpec(),
		"Views":  ViewsParameterSpec(),
		"Naming": NamingParameterSpec(),
	},
	Examples: []string{
		"//ee::managed",
		"//ee::managed Clock -Views=util.Clock",
	},
}

// InterceptorsAnnotationSchema defines the schema for //ee::interceptors
// annotations. On a type it sets the class-level interceptors; on a method it
// sets the interceptors of that method.
var InterceptorsAnnotationSchema = AnnotationSchema{
	Type:        InterceptorsAnnotation,
	Description: "Binds interceptor classes to a component or one of its methods",
	Targets:     TypeTarget | MethodTarget,
	Positional:  []string{"Classes"},
	Parameters: map[string]ParameterSpec{
		"Classes":        ClassesParameterSpec(),
		"ExcludeDefault": FlagParameterSpec("Skip the module default interceptors"),
		"ExcludeClass":   FlagParameterSpec("Skip the class-level interceptors (methods only)"),
	},
	Examples: []string{
		"//ee::interceptors audit.Logger,audit.Timer",
		"//ee::interceptors -ExcludeDefault",
		"//ee::interceptors audit.Trace -ExcludeClass",
	},
}

// InjectAnnotationSchema defines the schema for //ee::inject annotations
var InjectAnnotationSchema = AnnotationSchema{
	Type:        InjectAnnotation,
	Description: "Injects the value bound to a naming name into a field",
	Targets:     FieldTarget,
	Positional:  []string{"Lookup"},
	Parameters: map[string]ParameterSpec{
		"Lookup": {
			Type:        StringType,
			Required:    true,
			Description: "Name to look up; relative names resolve under java:comp/env",
			Validator:   ValidateNamingName,
		},
	},
	Examples: []string{
		"//ee::inject java:comp/env/ejb/counter",
		"//ee::inject -Lookup=java:module/Counter!bank.CounterLocal",
	},
}

// EJBRefAnnotationSchema defines the schema for //ee::ejb annotations
var EJBRefAnnotationSchema = AnnotationSchema{
	Type:        EJBRefAnnotation,
	Description: "Declares an ejb-local-ref and injects it into a field",
	Targets:     FieldTarget,
	Positional:  []string{"Name"},
	Parameters: map[string]ParameterSpec{
		"Name": {
			Type:        StringType,
			Required:    true,
			Description: "Reference name, relative to java:comp/env unless it starts with java:",
			Validator:   ValidateNamingName,
		},
		"Type": {
			Type:        StringType,
			Required:    true,
			Description: "Local view class the reference resolves to",
			Validator:   ValidateClassName,
		},
		"Link": {
			Type:        StringType,
			Description: "Name of the target component in the same unit",
			Validator:   ValidateComponentName,
		},
		"Lookup": {
			Type:        StringType,
			Description: "Name the reference is an alias for",
			Validator:   ValidateNamingName,
		},
	},
	Examples: []string{
		"//ee::ejb ejb/counter -Type=bank.CounterLocal",
		"//ee::ejb ejb/counter -Type=bank.CounterLocal -Link=Counter",
		"//ee::ejb ejb/audit -Type=audit.Local -Lookup=java:global/audit/Audit",
	},
}

func callbackSchema(t AnnotationType, description string) AnnotationSchema {
	return AnnotationSchema{
		Type:        t,
		Description: description,
		Targets:     MethodTarget,
		Parameters:  map[string]ParameterSpec{},
		Examples:    []string{"//ee::" + t.String()},
	}
}

var (
	PostConstructAnnotationSchema    = callbackSchema(PostConstructAnnotation, "Runs after injection, before the instance is used")
	PreDestroyAnnotationSchema       = callbackSchema(PreDestroyAnnotation, "Runs before the instance is discarded")
	AroundInvokeAnnotationSchema     = callbackSchema(AroundInvokeAnnotation, "Wraps every business method of the class")
	AfterBeginAnnotationSchema       = callbackSchema(AfterBeginAnnotation, "Session synchronization: a transaction began")
	BeforeCompletionAnnotationSchema = callbackSchema(BeforeCompletionAnnotation, "Session synchronization: a transaction is about to complete")
	AfterCompletionAnnotationSchema  = callbackSchema(AfterCompletionAnnotation, "Session synchronization: a transaction completed")
)

// GetBuiltinSchemas returns all built-in annotation schemas
func GetBuiltinSchemas() []AnnotationSchema {
	return []AnnotationSchema{
		StatelessAnnotationSchema,
		StatefulAnnotationSchema,
		SingletonAnnotationSchema,
		ManagedAnnotationSchema,
		InterceptorsAnnotationSchema,
		InjectAnnotationSchema,
		EJBRefAnnotationSchema,
		PostConstructAnnotationSchema,
		PreDestroyAnnotationSchema,
		AroundInvokeAnnotationSchema,
		AfterBeginAnnotationSchema,
		BeforeCompletionAnnotationSchema,
		AfterCompletionAnnotationSchema,
	}
}

// RegisterBuiltinSchemas registers all built-in annotation schemas with the given registry
func RegisterBuiltinSchemas(registry AnnotationRegistry) error {
	for _, schema := range GetBuiltinSchemas() {
		if err := registry.Register(schema.Type, schema); err != nil {
			return fmt.Errorf("failed to register %s schema: %w", schema.Type, err)
		}
	}
	return nil
}

// NewBuiltinRegistry returns a registry holding every built-in schema
func NewBuiltinRegistry() AnnotationRegistry {
	r := NewRegistry()
	if err := RegisterBuiltinSchemas(r); err != nil {
		panic(err)
	}
	return r
}

// ValidateEJBRef rejects a reference that names both a link and a lookup
func ValidateEJBRef(annotation *ParsedAnnotation) error {
	if annotation.GetString("Link") != "" && annotation.GetString("Lookup") != "" {
		return fmt.Errorf("ejb reference %s sets both -Link and -Lookup", annotation.GetString("Name"))
	}
	return nil
}

// ValidatePoolParameters rejects pool sizing on a pass-through pool
func ValidatePoolParameters(annotation *ParsedAnnotation) error {
	if !annotation.GetBool("PassThrough") {
		return nil
	}
	var set []string
	for _, p := range []string{"MaxSize", "Timeout"} {
		if annotation.HasParameter(p) {
			set = append(set, "-"+p)
		}
	}
	if len(set) > 0 {
		return fmt.Errorf("-PassThrough cannot be combined with %s", strings.Join(set, ", "))
	}
	return nil
}

func init() {
	EJBRefAnnotationSchema.Validators = []CustomValidator{ValidateEJBRef}
	StatelessAnnotationSchema.Validators = []CustomValidator{ValidatePoolParameters}
}
