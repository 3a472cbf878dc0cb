package component

import (
	"fmt"
	"slices"

	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/service"
)

// InterceptorDescription references an interceptor class by name
type InterceptorDescription struct {
	ClassName string
}

// DependencyType says whether a component needs a service to start
type DependencyType int

const (
	Optional DependencyType = iota
	Required
)

func (t DependencyType) String() string {
	if t == Required {
		return "REQUIRED"
	}
	return "OPTIONAL"
}

// NamingMode selects the java:comp namespace a component sees
type NamingMode int

const (
	// UseModule shares the module namespace as java:comp
	UseModule NamingMode = iota
	// UseComponent gives the component a namespace of its own
	UseComponent
)

// ViewDescription describes one client-visible view of a component
type ViewDescription struct {
	ClassName     string
	ServiceName   service.Name
	Configurators []ViewConfigurator
}

// AddConfigurator appends a view configurator
func (v *ViewDescription) AddConfigurator(c ViewConfigurator) {
	v.Configurators = append(v.Configurators, c)
}

// BindingConfiguration binds a name in the component environment to a source
type BindingConfiguration struct {
	Name   string
	Source InjectionSource
}

// Description accumulates the declarative facts about one component before any
// of its classes are loaded. It is mutated only during deployment processing.
type Description struct {
	name           string
	className      string
	module         *ModuleDescription
	deploymentUnit service.Name
	serviceName    service.Name

	classInterceptors   []InterceptorDescription
	defaultInterceptors []InterceptorDescription
	methodInterceptors  map[classes.MethodIdentifier][]InterceptorDescription
	methodOrder         []classes.MethodIdentifier

	methodExcludeDefault map[classes.MethodIdentifier]bool
	methodExcludeClass   map[classes.MethodIdentifier]bool
	excludeDefault       bool

	allInterceptors []InterceptorDescription

	dependencies map[service.Name]DependencyType
	views        []*ViewDescription
	namingMode   NamingMode
	bindings     []BindingConfiguration
	envContext   string

	configurators []Configurator
	factory       Factory
	attachments   map[any]any
}

// NewDescription creates a description. All arguments are required; a missing
// one is a programming error and panics.
func NewDescription(name, className string, module *ModuleDescription, deploymentUnit service.Name) *Description {
	switch {
	case name == "":
		panic("component: name is required")
	case className == "":
		panic("component: class name is required")
	case module == nil:
		panic("component: module description is required")
	case deploymentUnit == "":
		panic("component: deployment unit service name is required")
	}
	module.GetOrAddClass(className)
	return &Description{
		name:                 name,
		className:            className,
		module:               module,
		deploymentUnit:       deploymentUnit,
		serviceName:          deploymentUnit.Append("component", name),
		methodInterceptors:   make(map[classes.MethodIdentifier][]InterceptorDescription),
		methodExcludeDefault: make(map[classes.MethodIdentifier]bool),
		methodExcludeClass:   make(map[classes.MethodIdentifier]bool),
		dependencies:         make(map[service.Name]DependencyType),
		envContext:           "java:comp/env/",
		configurators:        []Configurator{DefaultFirstConfigurator{}},
		attachments:          make(map[any]any),
	}
}

// Name returns the component name
func (d *Description) Name() string { return d.name }

// ClassName returns the component implementation class name
func (d *Description) ClassName() string { return d.className }

// Module returns the owning module description
func (d *Description) Module() *ModuleDescription { return d.module }

// ModuleName returns the owning module name
func (d *Description) ModuleName() string { return d.module.ModuleName }

// ApplicationName returns the owning application name
func (d *Description) ApplicationName() string { return d.module.ApplicationName }

// DeploymentUnit returns the service name of the owning deployment unit
func (d *Description) DeploymentUnit() service.Name { return d.deploymentUnit }

// ServiceName returns "<deployment-unit>.component.<name>"
func (d *Description) ServiceName() service.Name { return d.serviceName }

// ClassInterceptors returns the class-level interceptors in declaration order
func (d *Description) ClassInterceptors() []InterceptorDescription {
	return append([]InterceptorDescription(nil), d.classInterceptors...)
}

// DefaultInterceptors returns the module default interceptors
func (d *Description) DefaultInterceptors() []InterceptorDescription {
	return append([]InterceptorDescription(nil), d.defaultInterceptors...)
}

// MethodInterceptors returns the interceptors bound to one method
func (d *Description) MethodInterceptors(m classes.MethodIdentifier) []InterceptorDescription {
	return append([]InterceptorDescription(nil), d.methodInterceptors[m]...)
}

// InterceptedMethods returns the methods with method-level interceptors, in first-bound order
func (d *Description) InterceptedMethods() []classes.MethodIdentifier {
	return append([]classes.MethodIdentifier(nil), d.methodOrder...)
}

// AddClassInterceptor appends a class-level interceptor unless already present
func (d *Description) AddClassInterceptor(desc InterceptorDescription) bool {
	if containsInterceptor(d.classInterceptors, desc) {
		return false
	}
	d.module.GetOrAddClass(desc.ClassName)
	d.classInterceptors = append(d.classInterceptors, desc)
	d.invalidate()
	return true
}

// AddMethodInterceptor appends a method-level interceptor unless already present
func (d *Description) AddMethodInterceptor(m classes.MethodIdentifier, desc InterceptorDescription) bool {
	existing := d.methodInterceptors[m]
	if containsInterceptor(existing, desc) {
		return false
	}
	d.module.GetOrAddClass(desc.ClassName)
	if _, seen := d.methodInterceptors[m]; !seen {
		d.methodOrder = append(d.methodOrder, m)
	}
	d.methodInterceptors[m] = append(existing, desc)
	d.invalidate()
	return true
}

// SetClassInterceptors replaces the class-level interceptors
func (d *Description) SetClassInterceptors(descs []InterceptorDescription) {
	for _, desc := range descs {
		d.module.GetOrAddClass(desc.ClassName)
	}
	d.classInterceptors = append([]InterceptorDescription(nil), descs...)
	d.invalidate()
}

// SetDefaultInterceptors replaces the default interceptors
func (d *Description) SetDefaultInterceptors(descs []InterceptorDescription) {
	for _, desc := range descs {
		d.module.GetOrAddClass(desc.ClassName)
	}
	d.defaultInterceptors = append([]InterceptorDescription(nil), descs...)
	d.invalidate()
}

// SetMethodInterceptors replaces the interceptors of m. A full replacement, as a
// deployment descriptor declares it, also excludes class and default interceptors
// for that method.
func (d *Description) SetMethodInterceptors(m classes.MethodIdentifier, descs []InterceptorDescription) {
	for _, desc := range descs {
		d.module.GetOrAddClass(desc.ClassName)
	}
	if _, seen := d.methodInterceptors[m]; !seen {
		d.methodOrder = append(d.methodOrder, m)
	}
	d.methodInterceptors[m] = append([]InterceptorDescription(nil), descs...)
	d.methodExcludeClass[m] = true
	d.methodExcludeDefault[m] = true
	d.invalidate()
}

// ExcludeDefaultInterceptors opts m out of default interceptors
func (d *Description) ExcludeDefaultInterceptors(m classes.MethodIdentifier) {
	d.methodExcludeDefault[m] = true
	d.invalidate()
}

// ExcludeClassInterceptors opts m out of class-level interceptors
func (d *Description) ExcludeClassInterceptors(m classes.MethodIdentifier) {
	d.methodExcludeClass[m] = true
	d.invalidate()
}

// IsExcludeDefaultInterceptorsFor reports a method-level default exclusion
func (d *Description) IsExcludeDefaultInterceptorsFor(m classes.MethodIdentifier) bool {
	return d.methodExcludeDefault[m]
}

// IsExcludeClassInterceptorsFor reports a method-level class exclusion
func (d *Description) IsExcludeClassInterceptorsFor(m classes.MethodIdentifier) bool {
	return d.methodExcludeClass[m]
}

// IsExcludeDefaultInterceptors reports the class-level default exclusion
func (d *Description) IsExcludeDefaultInterceptors() bool {
	return d.excludeDefault
}

// SetExcludeDefaultInterceptors sets the class-level default exclusion
func (d *Description) SetExcludeDefaultInterceptors(exclude bool) {
	d.excludeDefault = exclude
	d.invalidate()
}

// AllInterceptors returns class, default (unless excluded at class level) and
// every method-level interceptor, each once, in first-seen order. The list is
// memoized until the next structural change; callers get their own copy.
func (d *Description) AllInterceptors() []InterceptorDescription {
	if d.allInterceptors == nil {
		var all []InterceptorDescription
		add := func(descs []InterceptorDescription) {
			for _, desc := range descs {
				if !containsInterceptor(all, desc) {
					all = append(all, desc)
				}
			}
		}
		add(d.classInterceptors)
		if !d.excludeDefault {
			add(d.defaultInterceptors)
		}
		for _, m := range d.methodOrder {
			add(d.methodInterceptors[m])
		}
		if all == nil {
			all = []InterceptorDescription{}
		}
		d.allInterceptors = all
	}
	return slices.Clone(d.allInterceptors)
}

func (d *Description) invalidate() {
	d.allInterceptors = nil
}

// AddDependency records a service dependency. Adding the same service twice keeps
// the stronger type: Required wins over Optional.
func (d *Description) AddDependency(name service.Name, t DependencyType) {
	if name == "" {
		panic("component: dependency name is required")
	}
	if t != Required && t != Optional {
		panic(fmt.Sprintf("component: invalid dependency type %d", int(t)))
	}
	if existing, ok := d.dependencies[name]; ok && existing == Required {
		return
	}
	d.dependencies[name] = t
}

// Dependencies returns a copy of the dependency map
func (d *Description) Dependencies() map[service.Name]DependencyType {
	out := make(map[service.Name]DependencyType, len(d.dependencies))
	for k, v := range d.dependencies {
		out[k] = v
	}
	return out
}

// AddView adds a view and returns its description for further configuration.
// The dispatch configurator is always installed.
func (d *Description) AddView(className string) *ViewDescription {
	v := &ViewDescription{
		ClassName:     className,
		ServiceName:   d.serviceName.Append("VIEW", className),
		Configurators: []ViewConfigurator{DispatchViewConfigurator{}},
	}
	d.views = append(d.views, v)
	return v
}

// Views returns the view descriptions
func (d *Description) Views() []*ViewDescription {
	return append([]*ViewDescription(nil), d.views...)
}

// NamingMode returns the naming mode
func (d *Description) NamingMode() NamingMode { return d.namingMode }

// SetNamingMode sets the naming mode
func (d *Description) SetNamingMode(mode NamingMode) { d.namingMode = mode }

// AddBinding binds name in the component environment. A later binding for the
// same name replaces the earlier one.
func (d *Description) AddBinding(b BindingConfiguration) {
	for i, existing := range d.bindings {
		if existing.Name == b.Name {
			d.bindings[i] = b
			return
		}
	}
	d.bindings = append(d.bindings, b)
}

// Bindings returns the binding configurations
func (d *Description) Bindings() []BindingConfiguration {
	return append([]BindingConfiguration(nil), d.bindings...)
}

// EnvContext returns the default context for unqualified environment names
func (d *Description) EnvContext() string { return d.envContext }

// AddConfigurator queues a configurator behind the existing ones
func (d *Description) AddConfigurator(c Configurator) {
	d.configurators = append(d.configurators, c)
}

// Configurators returns the queued configurators, the default first one leading
func (d *Description) Configurators() []Configurator {
	return append([]Configurator(nil), d.configurators...)
}

// SetFactory sets how the component is created from its configuration
func (d *Description) SetFactory(f Factory) { d.factory = f }

// Factory returns the component factory, nil meaning a Basic component
func (d *Description) Factory() Factory { return d.factory }

// Attach stores kind-specific data on the description
func (d *Description) Attach(key, value any) { d.attachments[key] = value }

// Attachment returns kind-specific data
func (d *Description) Attachment(key any) any { return d.attachments[key] }

func containsInterceptor(list []InterceptorDescription, desc InterceptorDescription) bool {
	for _, existing := range list {
		if existing == desc {
			return true
		}
	}
	return false
}
