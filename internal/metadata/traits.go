package metadata

// LifecycleTrait names the lifecycle callbacks a class declares
type LifecycleTrait struct {
	PostConstruct string `json:"post-construct,omitempty"`
	PreDestroy    string `json:"pre-destroy,omitempty"`
	AroundInvoke  string `json:"around-invoke,omitempty"`
}

// HasCallbacks reports whether any callback is named
func (l *LifecycleTrait) HasCallbacks() bool {
	return l.PostConstruct != "" || l.PreDestroy != "" || l.AroundInvoke != ""
}

// InterceptorTrait holds the interceptor bindings of a component
type InterceptorTrait struct {
	Interceptors       []string             `json:"interceptors,omitempty"`
	ExcludeDefault     bool                 `json:"exclude-default-interceptors,omitempty"`
	MethodInterceptors []MethodInterceptors `json:"method-interceptors,omitempty"`
}

// MethodBinding returns the binding for method, if any
func (i *InterceptorTrait) MethodBinding(method string) (*MethodInterceptors, bool) {
	for k := range i.MethodInterceptors {
		if i.MethodInterceptors[k].Method == method {
			return &i.MethodInterceptors[k], true
		}
	}
	return nil, false
}

// ClassMetadata is the metadata of a class that is not itself a component,
// typically an interceptor
type ClassMetadata struct {
	ClassName string `json:"class"`
	LifecycleTrait
	Injections []Injection `json:"injections,omitempty"`
	Origin     Origin      `json:"-"`
	Location   Location    `json:"-"`
}

// ComponentMetadata is the metadata of one component
type ComponentMetadata struct {
	Name      string   `json:"name"`
	ClassName string   `json:"class"`
	Kind      string   `json:"kind"`
	Views     []string `json:"views,omitempty"`
	Naming    string   `json:"naming,omitempty"`
	Startup   bool     `json:"init-on-startup,omitempty"`
	LifecycleTrait
	InterceptorTrait
	Pool            *PoolTrait            `json:"pool,omitempty"`
	Synchronization *SynchronizationTrait `json:"synchronization,omitempty"`
	Injections      []Injection           `json:"injections,omitempty"`
	LocalRefs       []LocalRef            `json:"ejb-local-refs,omitempty"`
	Origin          Origin                `json:"-"`
	Location        Location              `json:"-"`
}

// PackageMetadata is everything found in one Go package
type PackageMetadata struct {
	PackageName string
	PackagePath string
	Components  []*ComponentMetadata
	Classes     []*ClassMetadata
}

// ModuleMetadata is the metadata of a whole deployment module
type ModuleMetadata struct {
	Application         string               `json:"application"`
	Module              string               `json:"module"`
	DefaultInterceptors []string             `json:"default-interceptors,omitempty"`
	Classes             []*ClassMetadata     `json:"classes,omitempty"`
	Components          []*ComponentMetadata `json:"components,omitempty"`
}

// Component returns the component called name
func (m *ModuleMetadata) Component(name string) (*ComponentMetadata, bool) {
	for _, c := range m.Components {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Class returns the class metadata for className
func (m *ModuleMetadata) Class(className string) (*ClassMetadata, bool) {
	for _, c := range m.Classes {
		if c.ClassName == className {
			return c, true
		}
	}
	return nil, false
}

// AddPackage appends the components and classes of pkg
func (m *ModuleMetadata) AddPackage(pkg *PackageMetadata) {
	m.Components = append(m.Components, pkg.Components...)
	m.Classes = append(m.Classes, pkg.Classes...)
}
