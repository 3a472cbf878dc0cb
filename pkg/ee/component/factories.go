package component

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

type instanceKey struct{}

// InstanceKey is the factory-context slot holding the component object
var InstanceKey any = instanceKey{}

type interceptorKey struct{ class string }

// InterceptorKey is the factory-context slot holding the interceptor object of a class
func InterceptorKey(className string) any { return interceptorKey{class: className} }

type injectionKey struct {
	owner any
	field string
}

type componentKey struct{}

// ComponentKey stores the owning Component in factory contexts and invocation private data
var ComponentKey any = componentKey{}

type instanceDataKey struct{}

// InstanceDataKey stores the associated *Instance in invocation private data
var InstanceDataKey any = instanceDataKey{}

// InstantiatorFactory creates an object, stores it under Key and proceeds. If the
// rest of the chain fails the object is dropped again.
type InstantiatorFactory struct {
	Key   any
	Class *classes.Class
	New   classes.Constructor
	Hooks *LifecycleHooks
}

// Create implements interceptor.Factory
func (f *InstantiatorFactory) Create(fc *interceptor.FactoryContext) interceptor.Interceptor {
	ref := fc.Ref(f.Key)
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		ctor := f.New
		if ctor == nil {
			ctor = f.Class.NewInstance
		}
		obj, err := ctor()
		if err != nil {
			return nil, fmt.Errorf("instantiate %s: %w", f.Class.Name, err)
		}
		ref.Set(obj)
		f.Hooks.fire(HookInstantiate, f.Class.Name)
		res, err := ctx.Proceed()
		if err != nil {
			ref.Set(nil)
		}
		return res, err
	})
}

// DestructorFactory releases the object under Key once the rest of the chain has
// finished, so callbacks further down still see it.
type DestructorFactory struct {
	Key       any
	ClassName string
	Hooks     *LifecycleHooks
}

// Create implements interceptor.Factory
func (f *DestructorFactory) Create(fc *interceptor.FactoryContext) interceptor.Interceptor {
	ref := fc.Ref(f.Key)
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		defer func() {
			if ref.Swap(nil) != nil {
				f.Hooks.fire(HookDestroy, f.ClassName)
			}
		}()
		return ctx.Proceed()
	})
}

// InjectorFactory resolves Source and assigns it to Field of the object under Key
type InjectorFactory struct {
	Key    any
	Field  *classes.Field
	Source InjectionSource
	Hooks  *LifecycleHooks
}

// Create implements interceptor.Factory
func (f *InjectorFactory) Create(fc *interceptor.FactoryContext) interceptor.Interceptor {
	target := fc.Ref(f.Key)
	value := fc.Ref(injectionKey{owner: f.Key, field: f.Field.Name})
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		obj := target.Get()
		if obj == nil {
			return nil, fmt.Errorf("inject %s: target not instantiated", f.label())
		}
		v, err := f.Source.Resolve(ctx.Context(), environmentOf(fc))
		if err != nil {
			return nil, fmt.Errorf("inject %s from %s: %w", f.label(), f.Source, err)
		}
		if err := f.Field.Set(obj, v); err != nil {
			return nil, fmt.Errorf("inject %s: %w", f.label(), err)
		}
		value.Set(v)
		f.Hooks.fire(HookInject, f.label())
		return ctx.Proceed()
	})
}

func (f *InjectorFactory) label() string {
	return f.Field.DeclaringClass.Name + "." + f.Field.Name
}

// UninjectorFactory clears an injected field before proceeding
type UninjectorFactory struct {
	Key   any
	Field *classes.Field
	Hooks *LifecycleHooks
}

// Create implements interceptor.Factory
func (f *UninjectorFactory) Create(fc *interceptor.FactoryContext) interceptor.Interceptor {
	target := fc.Ref(f.Key)
	value := fc.Ref(injectionKey{owner: f.Key, field: f.Field.Name})
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		if value.Swap(nil) != nil {
			if obj := target.Get(); obj != nil {
				if err := f.Field.Set(obj, nil); err != nil {
					environmentOf(fc).logger().WithError(err).
						WithField("field", f.Field.DeclaringClass.Name+"."+f.Field.Name).
						Warn("failed to clear injected field")
				}
			}
			f.Hooks.fire(HookUninject, f.Field.DeclaringClass.Name+"."+f.Field.Name)
		}
		return ctx.Proceed()
	})
}

// MethodKind says which interception point a MethodInterceptorFactory serves
type MethodKind int

const (
	AroundInvoke MethodKind = iota
	PostConstruct
	PreDestroy
)

func (k MethodKind) String() string {
	switch k {
	case PostConstruct:
		return "post-construct"
	case PreDestroy:
		return "pre-destroy"
	default:
		return "around-invoke"
	}
}

// MethodInterceptorFactory calls an interceptor or component method on the object
// stored under Key. Lifecycle callbacks are invoked and the chain then proceeds;
// around-invoke methods drive the chain themselves through Proceed.
type MethodInterceptorFactory struct {
	Key    any
	Method *classes.Method
	Kind   MethodKind
}

// Create implements interceptor.Factory
func (f *MethodInterceptorFactory) Create(fc *interceptor.FactoryContext) interceptor.Interceptor {
	ref := fc.Ref(f.Key)
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		obj := ref.Get()
		if obj == nil {
			return nil, fmt.Errorf("%s %s: no instance", f.Kind, f.Method)
		}
		if f.Kind == AroundInvoke {
			return f.Method.Invoke(obj, ctx)
		}
		if _, err := f.Method.Invoke(obj, lifecycleInvocation{ctx}); err != nil {
			return nil, fmt.Errorf("%s %s: %w", f.Kind, f.Method, err)
		}
		return ctx.Proceed()
	})
}

func (f *MethodInterceptorFactory) String() string {
	return f.Kind.String() + " " + f.Method.String()
}

// lifecycleInvocation lets a lifecycle method read parameters but keeps it from
// advancing the chain, which the factory does itself.
type lifecycleInvocation struct {
	ctx *interceptor.Context
}

func (l lifecycleInvocation) Parameters() []any { return l.ctx.Parameters() }

func (l lifecycleInvocation) Proceed() (any, error) { return nil, nil }

// MethodInvokerFactory ends a component method chain by calling the business
// method on the component object
type MethodInvokerFactory struct {
	Method *classes.Method
}

// Create implements interceptor.Factory
func (f *MethodInvokerFactory) Create(fc *interceptor.FactoryContext) interceptor.Interceptor {
	ref := fc.Ref(InstanceKey)
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		obj := ref.Get()
		if obj == nil {
			return nil, fmt.Errorf("invoke %s: component instance is gone", f.Method)
		}
		return f.Method.Invoke(obj, ctx)
	})
}

func environmentOf(fc *interceptor.FactoryContext) *Environment {
	if c, ok := fc.Get(ComponentKey).(Component); ok {
		return c.Environment()
	}
	return nil
}

var discardLog = logging.Discard()

func (e *Environment) logger() *logrus.Entry {
	if e == nil || e.Log == nil {
		return discardLog
	}
	return e.Log
}

// HookEvent identifies an instance assembly step
type HookEvent int

const (
	HookInstantiate HookEvent = iota
	HookInject
	HookUninject
	HookDestroy
)

func (e HookEvent) String() string {
	switch e {
	case HookInstantiate:
		return "instantiate"
	case HookInject:
		return "inject"
	case HookUninject:
		return "uninject"
	case HookDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("HookEvent(%d)", int(e))
	}
}

// LifecycleHooks observes instance assembly and teardown. Subject is the class
// name for instantiate/destroy and Class.field for inject/uninject.
type LifecycleHooks struct {
	OnEvent func(event HookEvent, subject string)
}

func (h *LifecycleHooks) fire(event HookEvent, subject string) {
	if h != nil && h.OnEvent != nil {
		h.OnEvent(event, subject)
	}
}
