package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/toyz/eecore/internal/errors"
)

// PassThroughPool keeps nothing: every Get creates a fresh instance and every
// return destroys it. It has no size limit.
type PassThroughPool[T comparable] struct {
	name     string
	observer Observer

	mu        sync.Mutex
	factory   InstanceFactory[T]
	inUse     map[T]struct{}
	created   uint64
	destroyed uint64
	discarded uint64
}

// NewPassThroughPool creates a pass-through pool
func NewPassThroughPool[T comparable](name string, observer Observer) *PassThroughPool[T] {
	return &PassThroughPool[T]{
		name:     name,
		observer: observerOrNop(observer),
		inUse:    make(map[T]struct{}),
	}
}

// SetInstanceFactory implements Pool
func (p *PassThroughPool[T]) SetInstanceFactory(factory InstanceFactory[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factory = factory
}

// Get implements Pool
func (p *PassThroughPool[T]) Get(ctx context.Context) (T, error) {
	var zero T
	p.mu.Lock()
	factory := p.factory
	p.mu.Unlock()
	if factory == nil {
		return zero, errors.IllegalStatef("get", "pool %s has no instance factory", p.name)
	}
	inst, err := factory.CreateInstance(ctx)
	if err != nil {
		return zero, fmt.Errorf("pool %s: create instance: %w", p.name, err)
	}
	p.mu.Lock()
	p.inUse[inst] = struct{}{}
	p.created++
	p.mu.Unlock()
	p.observer.ObservePool(p.name, EventCreate, 0)
	p.observer.ObservePool(p.name, EventGet, 0)
	return inst, nil
}

func (p *PassThroughPool[T]) finish(ctx context.Context, op string, inst T, event Event) error {
	p.mu.Lock()
	if _, ok := p.inUse[inst]; !ok {
		p.mu.Unlock()
		return errors.IllegalStatef(op, "instance %v was not checked out of pool %s", inst, p.name)
	}
	delete(p.inUse, inst)
	if event == EventDiscard {
		p.discarded++
	} else {
		p.destroyed++
	}
	factory := p.factory
	p.mu.Unlock()

	factory.DestroyInstance(ctx, inst)
	p.observer.ObservePool(p.name, event, 0)
	return nil
}

// Release implements Pool; the instance is destroyed
func (p *PassThroughPool[T]) Release(ctx context.Context, inst T) error {
	return p.finish(ctx, "release", inst, EventDestroy)
}

// Destroy implements Pool
func (p *PassThroughPool[T]) Destroy(ctx context.Context, inst T) error {
	return p.finish(ctx, "destroy", inst, EventDestroy)
}

// Discard implements Pool. Nothing is ever reused, so the instance is destroyed
// like any other.
func (p *PassThroughPool[T]) Discard(inst T) error {
	return p.finish(context.Background(), "discard", inst, EventDiscard)
}

// Close implements Pool
func (p *PassThroughPool[T]) Close(context.Context) error { return nil }

// Stats implements Pool
func (p *PassThroughPool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:      p.name,
		Kind:      "pass-through",
		InUse:     len(p.inUse),
		Created:   p.created,
		Destroyed: p.destroyed,
		Discarded: p.discarded,
	}
}

var _ Pool[*struct{}] = (*PassThroughPool[*struct{}])(nil)
