package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
)

// Options configures a StrictMaxPool
type Options struct {
	Name    string
	MaxSize int64
	// Timeout bounds the wait for a free slot. Zero waits until ctx is done.
	Timeout  time.Duration
	Observer Observer
	Log      *logrus.Entry
}

// StrictMaxPool never has more than MaxSize instances in use. Released
// instances are kept for reuse; callers beyond the limit wait for a release.
type StrictMaxPool[T comparable] struct {
	name     string
	maxSize  int64
	timeout  time.Duration
	slots    *semaphore.Weighted
	observer Observer
	log      *logrus.Entry

	mu        sync.Mutex
	factory   InstanceFactory[T]
	idle      []T
	inUse     map[T]struct{}
	closed    bool
	created   uint64
	destroyed uint64
	discarded uint64
	timeouts  uint64
}

// NewStrictMaxPool validates opts and creates an empty pool
func NewStrictMaxPool[T comparable](opts Options) (*StrictMaxPool[T], error) {
	if opts.MaxSize <= 0 {
		return nil, errors.NewIllegalStateError("create pool", "",
			fmt.Sprintf("pool %s: max size must be positive, got %d", opts.Name, opts.MaxSize))
	}
	if opts.Timeout < 0 {
		return nil, errors.NewIllegalStateError("create pool", "",
			fmt.Sprintf("pool %s: timeout must not be negative, got %s", opts.Name, opts.Timeout))
	}
	return &StrictMaxPool[T]{
		name:     opts.Name,
		maxSize:  opts.MaxSize,
		timeout:  opts.Timeout,
		slots:    semaphore.NewWeighted(opts.MaxSize),
		observer: observerOrNop(opts.Observer),
		log:      logging.OrDefault(opts.Log).WithField("pool", opts.Name),
		inUse:    make(map[T]struct{}),
	}, nil
}

// SetInstanceFactory implements Pool
func (p *StrictMaxPool[T]) SetInstanceFactory(factory InstanceFactory[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factory = factory
}

// Get implements Pool
func (p *StrictMaxPool[T]) Get(ctx context.Context) (T, error) {
	var zero T
	p.mu.Lock()
	factory, closed := p.factory, p.closed
	p.mu.Unlock()
	if factory == nil {
		return zero, errors.IllegalStatef("get", "pool %s has no instance factory", p.name)
	}
	if closed {
		return zero, errors.IllegalStatef("get", "pool %s is closed", p.name)
	}

	start := time.Now()
	if err := p.acquire(ctx); err != nil {
		return zero, err
	}
	wait := time.Since(start)

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse[inst] = struct{}{}
		p.mu.Unlock()
		p.observer.ObservePool(p.name, EventGet, wait)
		return inst, nil
	}
	p.mu.Unlock()

	created := false
	defer func() {
		if !created {
			p.slots.Release(1)
		}
	}()
	inst, err := factory.CreateInstance(ctx)
	if err != nil {
		return zero, fmt.Errorf("pool %s: create instance: %w", p.name, err)
	}
	created = true
	p.mu.Lock()
	p.inUse[inst] = struct{}{}
	p.created++
	p.mu.Unlock()
	p.observer.ObservePool(p.name, EventCreate, 0)
	p.observer.ObservePool(p.name, EventGet, wait)
	return inst, nil
}

func (p *StrictMaxPool[T]) acquire(ctx context.Context) error {
	waitCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	err := p.slots.Acquire(waitCtx, 1)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.mu.Lock()
	p.timeouts++
	p.mu.Unlock()
	waited := time.Since(start)
	p.observer.ObservePool(p.name, EventTimeout, waited)
	p.log.WithField("waited", waited).Warn("timed out waiting for a pooled instance")
	return errors.NewTimeoutError("pool "+p.name, p.timeout.String(), ErrPoolTimeout)
}

// checkIn removes inst from the in-use set
func (p *StrictMaxPool[T]) checkIn(op string, inst T) error {
	if _, ok := p.inUse[inst]; !ok {
		return errors.IllegalStatef(op, "instance %v was not checked out of pool %s", inst, p.name)
	}
	delete(p.inUse, inst)
	return nil
}

// Release implements Pool
func (p *StrictMaxPool[T]) Release(ctx context.Context, inst T) error {
	p.mu.Lock()
	if err := p.checkIn("release", inst); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.closed {
		p.destroyed++
		factory := p.factory
		p.mu.Unlock()
		p.slots.Release(1)
		factory.DestroyInstance(ctx, inst)
		p.observer.ObservePool(p.name, EventDestroy, 0)
		return nil
	}
	p.idle = append(p.idle, inst)
	p.mu.Unlock()
	p.slots.Release(1)
	p.observer.ObservePool(p.name, EventRelease, 0)
	return nil
}

// Destroy implements Pool
func (p *StrictMaxPool[T]) Destroy(ctx context.Context, inst T) error {
	p.mu.Lock()
	if err := p.checkIn("destroy", inst); err != nil {
		p.mu.Unlock()
		return err
	}
	p.destroyed++
	factory := p.factory
	p.mu.Unlock()
	p.slots.Release(1)
	factory.DestroyInstance(ctx, inst)
	p.observer.ObservePool(p.name, EventDestroy, 0)
	return nil
}

// Discard implements Pool
func (p *StrictMaxPool[T]) Discard(inst T) error {
	p.mu.Lock()
	if err := p.checkIn("discard", inst); err != nil {
		p.mu.Unlock()
		return err
	}
	p.discarded++
	factory := p.factory
	p.mu.Unlock()
	p.slots.Release(1)
	factory.DestroyInstance(context.Background(), inst)
	p.observer.ObservePool(p.name, EventDiscard, 0)
	p.log.Debug("discarded pooled instance")
	return nil
}

// Close implements Pool
func (p *StrictMaxPool[T]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.destroyed += uint64(len(idle))
	factory := p.factory
	p.mu.Unlock()

	for _, inst := range idle {
		factory.DestroyInstance(ctx, inst)
		p.observer.ObservePool(p.name, EventDestroy, 0)
	}
	p.log.WithField("destroyed", len(idle)).Debug("pool closed")
	return nil
}

// Stats implements Pool
func (p *StrictMaxPool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:      p.name,
		Kind:      "strict-max",
		MaxSize:   p.maxSize,
		Available: len(p.idle),
		InUse:     len(p.inUse),
		Created:   p.created,
		Destroyed: p.destroyed,
		Discarded: p.discarded,
		Timeouts:  p.timeouts,
	}
}

var _ Pool[*struct{}] = (*StrictMaxPool[*struct{}])(nil)
