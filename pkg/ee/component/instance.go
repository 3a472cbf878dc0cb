package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

// Instance is one managed object graph: the component object, its interceptor
// objects and injected references, plus the chains built for them.
type Instance struct {
	id         uint64
	component  Component
	target     *interceptor.Ref
	methods    map[classes.MethodIdentifier]interceptor.Interceptor
	preDestroy interceptor.Interceptor
	onDestroy  func(*Instance)

	destroyOnce sync.Once
	destroyErr  error
	mu          sync.RWMutex
	destroyed   bool
}

// ID returns a component-unique instance number
func (i *Instance) ID() uint64 { return i.id }

// Component returns the owning component
func (i *Instance) Component() Component { return i.component }

// Target returns the component object, nil once destroyed
func (i *Instance) Target() any { return i.target.Get() }

// Interceptor returns the chain of a component method for this instance
func (i *Instance) Interceptor(method classes.MethodIdentifier) (interceptor.Interceptor, bool) {
	chain, ok := i.methods[method]
	return chain, ok
}

// Destroyed reports whether pre-destroy has run
func (i *Instance) Destroyed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.destroyed
}

// Invoke calls a component method on this instance through its chain
func (i *Instance) Invoke(ctx context.Context, method classes.MethodIdentifier, args ...any) (any, error) {
	if i.Destroyed() {
		return nil, fmt.Errorf("instance %d of %s has been destroyed", i.id, i.component.Name())
	}
	chain, ok := i.methods[method]
	if !ok {
		return nil, fmt.Errorf("component %s has no method %s", i.component.Name(), method)
	}
	m, _ := i.component.Configuration().ComponentMethod(method)

	ic := i.newContext(ctx)
	ic.SetMethod(m)
	ic.SetParameters(args)
	ic.SetTarget(i.Target())
	return chain.Process(ic)
}

// Destroy runs the pre-destroy chain. Only the first call has an effect; later
// calls return the first result.
func (i *Instance) Destroy(ctx context.Context) error {
	i.destroyOnce.Do(func() {
		i.mu.Lock()
		i.destroyed = true
		i.mu.Unlock()

		if _, err := i.preDestroy.Process(i.newContext(ctx)); err != nil {
			i.destroyErr = fmt.Errorf("destroy instance %d of %s: %w", i.id, i.component.Name(), err)
		}
		if i.onDestroy != nil {
			i.onDestroy(i)
		}
	})
	return i.destroyErr
}

// Discard drops the instance without running pre-destroy, as done after a
// system failure. It has no effect once the instance is destroyed.
func (i *Instance) Discard() {
	i.destroyOnce.Do(func() {
		i.mu.Lock()
		i.destroyed = true
		i.mu.Unlock()
		i.target.Set(nil)
		if i.onDestroy != nil {
			i.onDestroy(i)
		}
	})
}

func (i *Instance) newContext(ctx context.Context) *interceptor.Context {
	ic := interceptor.NewContext(ctx)
	ic.SetPrivateData(ComponentKey, i.component)
	ic.SetPrivateData(InstanceDataKey, i)
	return ic
}

// InstanceFrom returns the instance associated with an invocation, if any
func InstanceFrom(ic *interceptor.Context) (*Instance, bool) {
	inst, ok := ic.PrivateData(InstanceDataKey).(*Instance)
	return inst, ok
}

// ComponentFrom returns the component an invocation is running in, if any
func ComponentFrom(ic *interceptor.Context) (Component, bool) {
	c, ok := ic.PrivateData(ComponentKey).(Component)
	return c, ok
}
