// Package metadata holds the plain component metadata read from //ee::
// annotations and from deployment descriptors. Nothing here depends on loaded
// classes; the merge package turns it into component descriptions.
package metadata

// Origin says where a piece of metadata was declared
type Origin string

const (
	FromAnnotation Origin = "annotation"
	FromDescriptor Origin = "descriptor"
)

// Location points at the declaration metadata was read from
type Location struct {
	File string
	Line int
}

// Kind names of the component types
const (
	KindStateless = "stateless"
	KindStateful  = "stateful"
	KindSingleton = "singleton"
	KindManaged   = "managed"
)

// Naming modes
const (
	NamingModule    = "module"
	NamingComponent = "component"
)

// Injection injects the value bound to Lookup into Field
type Injection struct {
	Field  string `json:"field"`
	Lookup string `json:"lookup"`
}

// LocalRef is an ejb-local-ref. Field, when set, also receives the reference.
type LocalRef struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Link   string `json:"link,omitempty"`
	Lookup string `json:"lookup,omitempty"`
	Field  string `json:"injection-target,omitempty"`
}

// MethodInterceptors binds interceptors to a single business method. Method is
// either a bare method name or the full "ret name(params)" form.
type MethodInterceptors struct {
	Method         string   `json:"method"`
	Interceptors   []string `json:"interceptors,omitempty"`
	ExcludeDefault bool     `json:"exclude-default-interceptors,omitempty"`
	ExcludeClass   bool     `json:"exclude-class-interceptors,omitempty"`
}

// PoolTrait sizes the pool of a stateless component. Timeout uses
// time.ParseDuration syntax.
type PoolTrait struct {
	MaxSize     int    `json:"max-size,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	PassThrough bool   `json:"pass-through,omitempty"`
}

// SynchronizationTrait names the session synchronization callbacks
type SynchronizationTrait struct {
	AfterBegin       string `json:"after-begin,omitempty"`
	BeforeCompletion string `json:"before-completion,omitempty"`
	AfterCompletion  string `json:"after-completion,omitempty"`
}

// Empty reports whether no callback is named
func (s *SynchronizationTrait) Empty() bool {
	return s == nil || (s.AfterBegin == "" && s.BeforeCompletion == "" && s.AfterCompletion == "")
}
