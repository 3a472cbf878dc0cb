// Package pool provides the instance pools behind pooled components.
package pool

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrPoolTimeout is returned by Get when no instance became available in time.
// It is wrapped in an errors.TimeoutError.
var ErrPoolTimeout = stderrors.New("pool: timed out waiting for an instance")

// InstanceFactory creates and destroys the instances a pool hands out
type InstanceFactory[T comparable] interface {
	CreateInstance(ctx context.Context) (T, error)
	DestroyInstance(ctx context.Context, instance T)
}

// FactoryFuncs adapts a pair of functions to InstanceFactory
type FactoryFuncs[T comparable] struct {
	Create  func(ctx context.Context) (T, error)
	Destroy func(ctx context.Context, instance T)
}

// CreateInstance implements InstanceFactory
func (f FactoryFuncs[T]) CreateInstance(ctx context.Context) (T, error) {
	return f.Create(ctx)
}

// DestroyInstance implements InstanceFactory
func (f FactoryFuncs[T]) DestroyInstance(ctx context.Context, instance T) {
	if f.Destroy != nil {
		f.Destroy(ctx, instance)
	}
}

// Pool hands out instances for exclusive use. An instance obtained from Get
// belongs to the caller until it is passed to Release, Destroy or Discard.
type Pool[T comparable] interface {
	// Get returns an instance marked as in use
	Get(ctx context.Context) (T, error)
	// Release returns an instance after a successful call
	Release(ctx context.Context, instance T) error
	// Destroy removes an instance and lets the factory destroy it
	Destroy(ctx context.Context, instance T) error
	// Discard drops an instance that failed a call. The factory destroys it
	// and it is never handed out again.
	Discard(instance T) error
	SetInstanceFactory(factory InstanceFactory[T])
	Stats() Stats
	// Close destroys idle instances; instances in use are destroyed on release
	Close(ctx context.Context) error
}

// Stats is a point-in-time view of a pool
type Stats struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	MaxSize   int64  `json:"max_size"`
	Available int    `json:"available"`
	InUse     int    `json:"in_use"`
	Created   uint64 `json:"created"`
	Destroyed uint64 `json:"destroyed"`
	Discarded uint64 `json:"discarded"`
	Timeouts  uint64 `json:"timeouts"`
}

// Event is a pool occurrence reported to an Observer
type Event int

const (
	EventGet Event = iota
	EventRelease
	EventCreate
	EventDestroy
	EventDiscard
	EventTimeout
)

func (e Event) String() string {
	switch e {
	case EventGet:
		return "get"
	case EventRelease:
		return "release"
	case EventCreate:
		return "create"
	case EventDestroy:
		return "destroy"
	case EventDiscard:
		return "discard"
	case EventTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Observer receives pool events. wait is only set for EventGet and EventTimeout.
type Observer interface {
	ObservePool(pool string, event Event, wait time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObservePool(string, Event, time.Duration) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
