package component

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/toyz/eecore/internal/utils"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/naming"
	"github.com/toyz/eecore/pkg/ee/service"
)

// ModuleDescription collects the class descriptions of one EE module
type ModuleDescription struct {
	ApplicationName string
	ModuleName      string
	classes         map[string]*ClassDescription
	order           []string
}

// NewModuleDescription creates an empty module description
func NewModuleDescription(appName, moduleName string) *ModuleDescription {
	return &ModuleDescription{
		ApplicationName: appName,
		ModuleName:      moduleName,
		classes:         make(map[string]*ClassDescription),
	}
}

// GetOrAddClass returns the description of className, registering it when new
func (m *ModuleDescription) GetOrAddClass(className string) *ClassDescription {
	if cd, ok := m.classes[className]; ok {
		return cd
	}
	cd := &ClassDescription{ClassName: className}
	m.classes[className] = cd
	m.order = append(m.order, className)
	return cd
}

// Class returns a registered class description
func (m *ModuleDescription) Class(className string) (*ClassDescription, bool) {
	cd, ok := m.classes[className]
	return cd, ok
}

// HasClass reports whether className is registered
func (m *ModuleDescription) HasClass(className string) bool {
	_, ok := m.classes[className]
	return ok
}

// ClassNames returns registered class names in registration order
func (m *ModuleDescription) ClassNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// ClassDescription holds the lifecycle and injection metadata of one class
type ClassDescription struct {
	ClassName     string
	PostConstruct *classes.MethodIdentifier
	PreDestroy    *classes.MethodIdentifier
	AroundInvoke  *classes.MethodIdentifier
	Injections    []InjectionConfiguration
}

// AddInjection records a field injection
func (cd *ClassDescription) AddInjection(field string, source InjectionSource) {
	cd.Injections = append(cd.Injections, InjectionConfiguration{
		Target: InjectionTarget{ClassName: cd.ClassName, Field: field},
		Source: source,
	})
}

// InjectionTarget names the field a value is injected into
type InjectionTarget struct {
	ClassName string
	Field     string
}

// InjectionConfiguration pairs an injection target with its value source
type InjectionConfiguration struct {
	Target InjectionTarget
	Source InjectionSource
}

// Environment is what a running component resolves names and services against
type Environment struct {
	Naming   *naming.Namespaces
	Services service.Registry
	Log      *logrus.Entry
}

// InjectionSource produces a value for an injection or a naming binding
type InjectionSource interface {
	// Dependencies lists services that must be up before the component starts
	Dependencies() []service.Name
	Resolve(ctx context.Context, env *Environment) (any, error)
	fmt.Stringer
}

// LookupSource resolves a name in the component's naming context
type LookupSource struct {
	Name string
}

// Dependencies implements InjectionSource
func (LookupSource) Dependencies() []service.Name { return nil }

// Resolve implements InjectionSource
func (s LookupSource) Resolve(ctx context.Context, env *Environment) (any, error) {
	if env == nil || env.Naming == nil {
		return nil, fmt.Errorf("no naming context to look up %s", s.Name)
	}
	return env.Naming.Lookup(ctx, s.Name)
}

func (s LookupSource) String() string { return "lookup " + s.Name }

// ServiceSource injects the value of a running service
type ServiceSource struct {
	Service service.Name
}

// Dependencies implements InjectionSource
func (s ServiceSource) Dependencies() []service.Name { return []service.Name{s.Service} }

// Resolve implements InjectionSource
func (s ServiceSource) Resolve(_ context.Context, env *Environment) (any, error) {
	if env == nil || env.Services == nil {
		return nil, fmt.Errorf("no service registry to resolve %s", s.Service)
	}
	return env.Services.Value(s.Service)
}

func (s ServiceSource) String() string { return "service " + s.Service.String() }

// ImmediateSource injects a fixed value
type ImmediateSource struct {
	Value any
}

// Dependencies implements InjectionSource
func (ImmediateSource) Dependencies() []service.Name { return nil }

// Resolve implements InjectionSource
func (s ImmediateSource) Resolve(context.Context, *Environment) (any, error) { return s.Value, nil }

func (s ImmediateSource) String() string { return fmt.Sprintf("value %v", s.Value) }

// LazySource injects a naming.ReferenceFactory that looks Name up on every use
type LazySource struct {
	Name string
}

// Dependencies implements InjectionSource
func (LazySource) Dependencies() []service.Name { return nil }

// Resolve implements InjectionSource
func (s LazySource) Resolve(_ context.Context, env *Environment) (any, error) {
	if env == nil || env.Naming == nil {
		return nil, fmt.Errorf("no naming context for lazy reference %s", s.Name)
	}
	return naming.Lazy(env.Naming, s.Name), nil
}

func (s LazySource) String() string { return "lazy " + s.Name }

// ClassConfiguration is a resolved class together with its description
type ClassConfiguration struct {
	Class       *classes.Class
	Description *ClassDescription
	Module      *ModuleConfiguration
}

// ModuleConfiguration resolves the classes of a module description
type ModuleConfiguration struct {
	Description *ModuleDescription
	Resolver    classes.Resolver
	resolved    *utils.Cache[string, *ClassConfiguration]
}

// NewModuleConfiguration binds a module description to a class resolver
func NewModuleConfiguration(md *ModuleDescription, resolver classes.Resolver) *ModuleConfiguration {
	return &ModuleConfiguration{
		Description: md,
		Resolver:    resolver,
		resolved:    utils.NewCache[string, *ClassConfiguration](),
	}
}

// ClassConfiguration resolves className. Classes without a description get an
// empty one so superclasses outside the module can still be traversed.
func (mc *ModuleConfiguration) ClassConfiguration(className string) (*ClassConfiguration, error) {
	if cc, ok := mc.resolved.Get(className); ok {
		return cc, nil
	}
	class, err := mc.Resolver.Resolve(className)
	if err != nil {
		return nil, err
	}
	return mc.configurationOf(class), nil
}

// Hierarchy returns the configurations of cc's class and its superclasses, root first
func (mc *ModuleConfiguration) Hierarchy(cc *ClassConfiguration) []*ClassConfiguration {
	var out []*ClassConfiguration
	for _, k := range cc.Class.Hierarchy() {
		if k == cc.Class {
			out = append(out, cc)
			continue
		}
		out = append(out, mc.configurationOf(k))
	}
	return out
}

// configurationOf wraps an already loaded class without going through the resolver
func (mc *ModuleConfiguration) configurationOf(class *classes.Class) *ClassConfiguration {
	if cc, ok := mc.resolved.Get(class.Name); ok && cc.Class == class {
		return cc
	}
	cd, ok := mc.Description.Class(class.Name)
	if !ok {
		cd = &ClassDescription{ClassName: class.Name}
	}
	cc := &ClassConfiguration{Class: class, Description: cd, Module: mc}
	mc.resolved.Set(class.Name, cc)
	return cc
}

// ResolvedClasses returns the names of classes resolved so far, sorted
func (mc *ModuleConfiguration) ResolvedClasses() []string {
	keys := mc.resolved.Keys()
	sort.Strings(keys)
	return keys
}
