// Package descriptor reads the YAML deployment descriptor of a module.
//
// The descriptor mirrors the metadata the annotations produce; keys follow the
// json tags of the metadata package. A minimal descriptor:
//
//	application: bank
//	module: core
//	default-interceptors: [audit.Logger]
//	components:
//	  - name: Counter
//	    class: bank.CounterBean
//	    kind: stateless
//	    views: [bank.CounterLocal]
//	    pool: {max-size: 4, timeout: 250ms}
//
// A component entry whose name matches an annotated component overrides it, so
// kind and class may be left out of such entries.
package descriptor

import (
	"fmt"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/toyz/eecore/internal/annotations"
	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/internal/utils"
)

// Loader reads descriptors from disk
type Loader struct {
	reader *utils.FileReader
}

// NewLoader returns a loader reading through reader, or a fresh reader when nil
func NewLoader(reader *utils.FileReader) *Loader {
	if reader == nil {
		reader = utils.NewFileReader()
	}
	return &Loader{reader: reader}
}

// Load parses and validates the descriptor at path
func (l *Loader) Load(path string) (*metadata.ModuleMetadata, error) {
	content, err := l.reader.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFileSystemError("read", path, err)
	}
	md, err := Parse([]byte(content), path)
	if err != nil {
		return nil, err
	}
	if err := Validate(md); err != nil {
		return nil, err
	}
	return md, nil
}

// Parse decodes a descriptor. Unknown keys are rejected. source names the
// descriptor in locations and error messages.
func Parse(data []byte, source string) (*metadata.ModuleMetadata, error) {
	md := &metadata.ModuleMetadata{}
	if err := yaml.UnmarshalStrict(data, md); err != nil {
		return nil, errors.Wrap(errors.SyntaxErrorCode, fmt.Sprintf("invalid deployment descriptor: %v", err), err).
			WithLocation(errors.SourceLocation{File: source}).
			WithSuggestion("Keys use the kebab-case names shown in the descriptor reference, e.g. ejb-local-refs")
	}

	loc := metadata.Location{File: source}
	for _, c := range md.Components {
		c.Origin = metadata.FromDescriptor
		c.Location = loc
	}
	for _, c := range md.Classes {
		c.Origin = metadata.FromDescriptor
		c.Location = loc
	}
	return md, nil
}

var kinds = map[string]bool{
	metadata.KindStateless: true,
	metadata.KindStateful:  true,
	metadata.KindSingleton: true,
	metadata.KindManaged:   true,
}

// Validate checks a parsed descriptor on its own. Checks that need the
// annotated metadata as well happen when the two are merged.
func Validate(md *metadata.ModuleMetadata) error {
	v := &validation{}

	for _, name := range md.DefaultInterceptors {
		v.check(annotations.ValidateClassName(name), "default-interceptors", name)
	}

	seenClasses := make(map[string]bool)
	for _, c := range md.Classes {
		v.at = c.Location
		if c.ClassName == "" {
			v.fail("classes: entry without a class")
			continue
		}
		v.check(annotations.ValidateClassName(c.ClassName), "classes", c.ClassName)
		if seenClasses[c.ClassName] {
			v.fail("class %s is described twice", c.ClassName)
		}
		seenClasses[c.ClassName] = true
		v.injections(c.ClassName, c.Injections)
	}

	seen := make(map[string]bool)
	for _, c := range md.Components {
		v.at = c.Location
		if c.Name == "" {
			v.fail("components: entry without a name")
			continue
		}
		v.component(c)
		if seen[c.Name] {
			v.fail("component %s is described twice", c.Name)
		}
		seen[c.Name] = true
	}

	if v.errs != nil {
		return v.errs
	}
	return nil
}

type validation struct {
	at   metadata.Location
	errs *errors.MultipleErrors
}

func (v *validation) fail(format string, args ...any) {
	errors.AddToMultiple(&v.errs, errors.Newf(errors.ValidationErrorCode, format, args...).
		WithLocation(errors.SourceLocation{File: v.at.File, Line: v.at.Line}))
}

func (v *validation) check(err error, field, value string) {
	if err != nil {
		v.fail("%s: %s: %v", field, value, err)
	}
}

func (v *validation) component(c *metadata.ComponentMetadata) {
	v.check(annotations.ValidateComponentName(c.Name), "name", c.Name)
	if c.ClassName != "" {
		v.check(annotations.ValidateClassName(c.ClassName), c.Name+".class", c.ClassName)
	}
	if c.Kind != "" && !kinds[c.Kind] {
		v.fail("component %s: unknown kind %q, expected stateless, stateful, singleton or managed", c.Name, c.Kind)
	}
	if c.Naming != "" && c.Naming != metadata.NamingModule && c.Naming != metadata.NamingComponent {
		v.fail("component %s: naming must be module or component, got %q", c.Name, c.Naming)
	}
	for _, view := range c.Views {
		v.check(annotations.ValidateClassName(view), c.Name+".views", view)
	}
	for _, name := range c.Interceptors {
		v.check(annotations.ValidateClassName(name), c.Name+".interceptors", name)
	}
	methods := make(map[string]bool)
	for _, m := range c.MethodInterceptors {
		if m.Method == "" {
			v.fail("component %s: method-interceptors entry without a method", c.Name)
			continue
		}
		if methods[m.Method] {
			v.fail("component %s: method %s has two method-interceptors entries", c.Name, m.Method)
		}
		methods[m.Method] = true
		for _, name := range m.Interceptors {
			v.check(annotations.ValidateClassName(name), c.Name+"."+m.Method, name)
		}
	}

	if c.Pool != nil {
		v.pool(c)
	}
	if c.Startup && c.Kind != "" && c.Kind != metadata.KindSingleton {
		v.fail("component %s: init-on-startup needs a singleton, got %s", c.Name, c.Kind)
	}
	if !c.Synchronization.Empty() && c.Kind != "" && c.Kind != metadata.KindStateful {
		v.fail("component %s: synchronization callbacks need a stateful component, got %s", c.Name, c.Kind)
	}

	v.injections(c.Name, c.Injections)
	names := make(map[string]bool)
	for _, ref := range c.LocalRefs {
		switch {
		case ref.Name == "":
			v.fail("component %s: ejb-local-ref without a name", c.Name)
			continue
		case ref.Type == "":
			v.fail("component %s: ejb-local-ref %s has no type", c.Name, ref.Name)
		default:
			v.check(annotations.ValidateClassName(ref.Type), c.Name+"."+ref.Name, ref.Type)
		}
		v.check(annotations.ValidateNamingName(ref.Name), c.Name+".ejb-local-refs", ref.Name)
		if ref.Link != "" && ref.Lookup != "" {
			v.fail("component %s: ejb-local-ref %s sets both link and lookup", c.Name, ref.Name)
		}
		if names[ref.Name] {
			v.fail("component %s: ejb-local-ref %s is declared twice", c.Name, ref.Name)
		}
		names[ref.Name] = true
	}
}

func (v *validation) pool(c *metadata.ComponentMetadata) {
	if c.Kind != "" && c.Kind != metadata.KindStateless {
		v.fail("component %s: only stateless components are pooled, got %s", c.Name, c.Kind)
	}
	p := c.Pool
	if p.MaxSize < 0 {
		v.fail("component %s: pool max-size must not be negative, got %d", c.Name, p.MaxSize)
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		switch {
		case err != nil:
			v.fail("component %s: pool timeout %q: %v", c.Name, p.Timeout, err)
		case d < 0:
			v.fail("component %s: pool timeout must not be negative, got %s", c.Name, p.Timeout)
		}
	}
	if p.PassThrough && (p.MaxSize != 0 || p.Timeout != "") {
		v.fail("component %s: a pass-through pool takes no max-size or timeout", c.Name)
	}
}

func (v *validation) injections(owner string, injections []metadata.Injection) {
	for _, inj := range injections {
		if inj.Field == "" || inj.Lookup == "" {
			v.fail("%s: injections need both field and lookup, got field=%q lookup=%q", owner, inj.Field, inj.Lookup)
			continue
		}
		v.check(annotations.ValidateNamingName(inj.Lookup), owner+"."+inj.Field, inj.Lookup)
	}
}
