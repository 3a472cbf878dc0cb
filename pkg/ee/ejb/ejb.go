// Package ejb provides the session component kinds: stateless, stateful and
// singleton session components, plus plain managed beans. Each kind is a
// component.Component tagged with its Kind; kind-specific behaviour is exposed
// through the Poolable, SingleInstance and SessionScoped capabilities.
package ejb

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/pool"
	"github.com/toyz/eecore/pkg/ee/service"
)

// Kind tags a component variant
type Kind int

const (
	KindManagedBean Kind = iota
	KindStateless
	KindStateful
	KindSingleton
)

func (k Kind) String() string {
	switch k {
	case KindStateless:
		return "stateless"
	case KindStateful:
		return "stateful"
	case KindSingleton:
		return "singleton"
	default:
		return "managed-bean"
	}
}

// ParseKind maps an annotation or descriptor name to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stateless":
		return KindStateless, nil
	case "stateful":
		return KindStateful, nil
	case "singleton":
		return KindSingleton, nil
	case "managed", "managed-bean", "managedbean", "":
		return KindManagedBean, nil
	default:
		return 0, fmt.Errorf("unknown component kind %q", s)
	}
}

// Bean is a component of a known kind
type Bean interface {
	component.Component
	Kind() Kind
}

// Poolable components serve each call from a pooled instance
type Poolable interface {
	Pool() pool.Pool[*component.Instance]
}

// SingleInstance components share one lazily created instance
type SingleInstance interface {
	ComponentInstance(ctx context.Context) (*component.Instance, error)
}

// SessionScoped components bind an instance to a client session
type SessionScoped interface {
	CreateSession(ctx context.Context) (string, error)
	RemoveSession(ctx context.Context, id string) error
	Session(id string) (*component.Instance, bool)
}

// ErrNoSuchSession is returned for calls on a removed or unknown session
var ErrNoSuchSession = stderrors.New("no such session")

type sessionIDKey struct{}

// SessionIDKey is the invocation data key carrying a stateful session id
var SessionIDKey any = sessionIDKey{}

// systemFailure marks an error as leaving the instance in an unusable state
type systemFailure struct{ err error }

func (s systemFailure) Error() string { return s.err.Error() }

func (s systemFailure) Unwrap() error { return s.err }

// SystemFailure flags err as a system failure. A stateful session whose call
// fails this way is discarded.
func SystemFailure(err error) error {
	if err == nil {
		return nil
	}
	return systemFailure{err: err}
}

// IsSystemFailure reports whether err was flagged with SystemFailure or comes
// from a panic recovered in the instance chain
func IsSystemFailure(err error) bool {
	var sf systemFailure
	if stderrors.As(err, &sf) {
		return true
	}
	var pe *interceptor.PanicError
	return stderrors.As(err, &pe)
}

// Default pool settings, used when a stateless component names none
const (
	DefaultPoolSize    = 20
	DefaultPoolTimeout = 5 * time.Minute
)

// PoolSettings selects and sizes the pool of a stateless component
type PoolSettings struct {
	MaxSize     int64
	Timeout     time.Duration
	PassThrough bool
}

// Synchronization names the session synchronization callbacks of a stateful
// component class. AfterCompletion receives the commit outcome as its only parameter.
type Synchronization struct {
	AfterBegin       *classes.MethodIdentifier
	BeforeCompletion *classes.MethodIdentifier
	AfterCompletion  *classes.MethodIdentifier
}

func (s *Synchronization) empty() bool {
	return s == nil || (s.AfterBegin == nil && s.BeforeCompletion == nil && s.AfterCompletion == nil)
}

// Options carries the kind-specific settings of a component description
type Options struct {
	Pool            PoolSettings
	InitOnStartup   bool
	Synchronization *Synchronization
	// Lifecycle, when set, observes every lifecycle event and invocation
	Lifecycle interceptor.LifecycleAware
	Hooks     *component.LifecycleHooks
	// PoolObserver receives the pool events of stateless components
	PoolObserver pool.Observer
}

type kindKey struct{}

type optionsKey struct{}

// KindOf returns the kind a description was created with
func KindOf(d *component.Description) Kind {
	k, _ := d.Attachment(kindKey{}).(Kind)
	return k
}

// OptionsOf returns the options a description was created with
func OptionsOf(d *component.Description) Options {
	o, _ := d.Attachment(optionsKey{}).(Options)
	return o
}

// Describe creates a component description of the given kind with the
// configurators it needs queued in order
func Describe(kind Kind, name, className string, module *component.ModuleDescription, unit service.Name, opts Options) *component.Description {
	d := component.NewDescription(name, className, module, unit)
	d.Attach(kindKey{}, kind)
	d.Attach(optionsKey{}, opts)

	if opts.Lifecycle != nil {
		d.AddConfigurator(component.LifecycleAwareConfigurator{Interceptor: opts.Lifecycle})
	}
	if kind == KindStateful && !opts.Synchronization.empty() {
		d.AddConfigurator(synchronizationConfigurator{sync: opts.Synchronization})
	}
	d.AddConfigurator(component.InstantiateAndInjectConfigurator{Hooks: opts.Hooks})
	d.AddConfigurator(component.NamingContextConfigurator{})
	d.SetFactory(factoryFor(kind, opts))
	return d
}

// AddView adds a view to d together with the step that associates each call
// with an instance the way d's kind requires
func AddView(d *component.Description, className string) *component.ViewDescription {
	vd := d.AddView(className)
	vd.AddConfigurator(associationConfigurator{})
	return vd
}

func factoryFor(kind Kind, opts Options) component.Factory {
	return func(cfg *component.Configuration, env *component.Environment) (component.Component, error) {
		switch kind {
		case KindStateless:
			return NewStateless(cfg, env, opts)
		case KindStateful:
			return NewStateful(cfg, env), nil
		case KindSingleton:
			return NewSingleton(cfg, env, opts.InitOnStartup), nil
		default:
			return NewManagedBean(cfg, env), nil
		}
	}
}

// associationConfigurator puts the kind-specific association step in front of
// every view method
type associationConfigurator struct{}

func (associationConfigurator) ConfigureView(_ *component.PhaseContext, _ *component.Configuration, _ *component.ViewDescription, vc *component.ViewConfiguration) error {
	assoc := interceptor.Immediate(interceptor.Func(associate))
	for _, m := range vc.Methods() {
		vc.ViewInterceptorDeque(m).AddFirst(assoc)
	}
	return nil
}

type associator interface {
	associate(ctx *interceptor.Context) (any, error)
}

func associate(ctx *interceptor.Context) (any, error) {
	c, ok := component.ComponentFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("no component associated with the invocation")
	}
	a, ok := c.(associator)
	if !ok {
		return nil, fmt.Errorf("component %s cannot associate instances", c.Name())
	}
	return a.associate(ctx)
}

// withInstance runs the rest of the chain with inst as the associated instance
func withInstance(ctx *interceptor.Context, inst *component.Instance) (any, error) {
	prev := ctx.PrivateData(component.InstanceDataKey)
	ctx.SetPrivateData(component.InstanceDataKey, inst)
	defer ctx.SetPrivateData(component.InstanceDataKey, prev)
	return ctx.Proceed()
}
