package interceptor

import (
	"fmt"
	"sync"

	"github.com/toyz/eecore/pkg/ee/classes"
)

// Interceptor processes an invocation, normally calling ctx.Proceed to continue the chain
type Interceptor interface {
	Process(ctx *Context) (any, error)
}

// Func adapts a function to Interceptor
type Func func(ctx *Context) (any, error)

// Process implements Interceptor
func (f Func) Process(ctx *Context) (any, error) {
	return f(ctx)
}

// Factory creates an Interceptor bound to one component instance
type Factory interface {
	Create(fc *FactoryContext) Interceptor
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func(fc *FactoryContext) Interceptor

// Create implements Factory
func (f FactoryFunc) Create(fc *FactoryContext) Interceptor {
	return f(fc)
}

// Immediate returns a factory that hands out the same interceptor to every instance
func Immediate(i Interceptor) Factory {
	return immediateFactory{interceptor: i}
}

type immediateFactory struct {
	interceptor Interceptor
}

func (f immediateFactory) Create(*FactoryContext) Interceptor {
	return f.interceptor
}

// Unwrap returns the shared interceptor
func (f immediateFactory) Unwrap() Interceptor {
	return f.interceptor
}

// Ref is a mutable slot shared by the interceptors of one instance, used to hand
// objects from instantiators to the interceptors that use them.
type Ref struct {
	mu    sync.RWMutex
	value any
}

// Get returns the current value
func (r *Ref) Get() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set stores a value
func (r *Ref) Set(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
}

// Swap stores v and returns the previous value
func (r *Ref) Swap(v any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.value
	r.value = v
	return prev
}

// FactoryContext is the per-instance state shared by all factories while one
// component instance is being assembled.
type FactoryContext struct {
	mu   sync.Mutex
	data map[any]any
}

// NewFactoryContext creates an empty factory context
func NewFactoryContext() *FactoryContext {
	return &FactoryContext{data: make(map[any]any)}
}

// Get returns the value stored under key
func (fc *FactoryContext) Get(key any) any {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.data[key]
}

// Set stores a value under key
func (fc *FactoryContext) Set(key, value any) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.data[key] = value
}

// Ref returns the slot stored under key, creating it on first use
func (fc *FactoryContext) Ref(key any) *Ref {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if r, ok := fc.data[key].(*Ref); ok {
		return r
	}
	r := &Ref{}
	fc.data[key] = r
	return r
}

// Chain combines interceptors into one that runs them in order on the same context
func Chain(interceptors ...Interceptor) Interceptor {
	list := make([]Interceptor, len(interceptors))
	copy(list, interceptors)
	return Func(func(ctx *Context) (any, error) {
		return ctx.Run(list)
	})
}

// ChainFactories creates one interceptor per factory and chains them
func ChainFactories(fc *FactoryContext, factories []Factory) Interceptor {
	list := make([]Interceptor, 0, len(factories))
	for _, f := range factories {
		list = append(list, f.Create(fc))
	}
	return Chain(list...)
}

// Terminal ends a chain without proceeding
var Terminal Interceptor = terminal{}

// TerminalFactory produces Terminal
var TerminalFactory Factory = terminal{}

type terminal struct{}

func (terminal) Process(*Context) (any, error) { return nil, nil }

func (t terminal) Create(*FactoryContext) Interceptor { return t }

// Initial marks the start of a component invocation. It turns a panic raised
// further down the chain into an error so a failing instance can be discarded
// instead of crashing the caller.
var Initial Interceptor = initial{}

// InitialFactory produces Initial
var InitialFactory Factory = initial{}

type initial struct{}

func (initial) Process(ctx *Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r}
		}
	}()
	return ctx.Proceed()
}

// PanicError is returned by Initial when the rest of the chain panicked
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("invocation panicked: %v", e.Value)
}

// Unwrap returns the panic value when it was an error
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func (i initial) Create(*FactoryContext) Interceptor { return i }

// LoaderSwitch makes Loader the active class loader for the remainder of the
// chain and restores the caller's loader on every exit path. It is stateless and
// serves as its own factory.
type LoaderSwitch struct {
	Loader *classes.Loader
}

// NewLoaderSwitch creates a class loader switch for loader
func NewLoaderSwitch(loader *classes.Loader) *LoaderSwitch {
	return &LoaderSwitch{Loader: loader}
}

// Process implements Interceptor
func (s *LoaderSwitch) Process(ctx *Context) (any, error) {
	prev := ctx.SetClassLoader(s.Loader)
	defer ctx.SetClassLoader(prev)
	return ctx.Proceed()
}

// Create implements Factory
func (s *LoaderSwitch) Create(*FactoryContext) Interceptor {
	return s
}
