package service

import (
	"context"
	"fmt"
	"strings"
)

// Name is a dotted hierarchical service name such as "app.war.component.Bean"
type Name string

// NewName joins parts into a service name
func NewName(parts ...string) Name {
	return Name(strings.Join(parts, "."))
}

// Append returns n extended with parts
func (n Name) Append(parts ...string) Name {
	if n == "" {
		return NewName(parts...)
	}
	return Name(string(n) + "." + strings.Join(parts, "."))
}

// Parent returns n without its last segment
func (n Name) Parent() Name {
	i := strings.LastIndexByte(string(n), '.')
	if i < 0 {
		return ""
	}
	return n[:i]
}

// IsParentOf reports whether other lies strictly below n
func (n Name) IsParentOf(other Name) bool {
	return strings.HasPrefix(string(other), string(n)+".")
}

func (n Name) String() string {
	return string(n)
}

// State is the lifecycle state of an installed service
type State int

const (
	StateDown State = iota
	StateUp
	StateFailed
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateUp:
		return "UP"
	case StateFailed:
		return "FAILED"
	case StateRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Service is a unit managed by the container. Start receives the values of its
// dependencies through the StartContext; Value exposes what dependents receive.
type Service interface {
	Start(ctx context.Context, sc *StartContext) error
	Stop(ctx context.Context) error
	Value() any
}

// Funcs builds a Service from callbacks; nil callbacks are no-ops
type Funcs struct {
	OnStart func(ctx context.Context, sc *StartContext) (any, error)
	OnStop  func(ctx context.Context) error
	value   any
}

// Start implements Service
func (f *Funcs) Start(ctx context.Context, sc *StartContext) error {
	if f.OnStart == nil {
		return nil
	}
	v, err := f.OnStart(ctx, sc)
	if err != nil {
		return err
	}
	f.value = v
	return nil
}

// Stop implements Service
func (f *Funcs) Stop(ctx context.Context) error {
	f.value = nil
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Value implements Service
func (f *Funcs) Value() any {
	return f.value
}

// ValueService returns a service whose value is v
func ValueService(v any) Service {
	return &Funcs{OnStart: func(context.Context, *StartContext) (any, error) { return v, nil }}
}

// Target installs services
type Target interface {
	AddService(name Name, svc Service) *Builder
}

// Registry exposes the values of running services
type Registry interface {
	Value(name Name) (any, error)
}

// Builder collects the dependencies of a service before installation
type Builder struct {
	install  func(*Builder) error
	name     Name
	svc      Service
	required []Name
	optional []Name
}

// AddDependency declares a required dependency; the service fails when it is missing
func (b *Builder) AddDependency(names ...Name) *Builder {
	b.required = append(b.required, names...)
	return b
}

// AddOptionalDependency declares a dependency that is injected only when present
func (b *Builder) AddOptionalDependency(names ...Name) *Builder {
	b.optional = append(b.optional, names...)
	return b
}

// Install hands the service to the container
func (b *Builder) Install() error {
	return b.install(b)
}

// StartContext is passed to Service.Start
type StartContext struct {
	name      Name
	container *Container
	values    map[Name]any
}

// Name returns the name of the starting service
func (sc *StartContext) Name() Name {
	return sc.name
}

// Dependency returns the value of a started dependency
func (sc *StartContext) Dependency(name Name) (any, bool) {
	v, ok := sc.values[name]
	return v, ok
}

// Registry gives access to every running service
func (sc *StartContext) Registry() Registry {
	return sc.container
}

// ChildTarget installs services that depend on the starting one. They are started
// after the current service within the same Start call.
func (sc *StartContext) ChildTarget() Target {
	return childTarget{parent: sc.name, container: sc.container}
}

type childTarget struct {
	parent    Name
	container *Container
}

func (t childTarget) AddService(name Name, svc Service) *Builder {
	b := t.container.AddService(name, svc)
	b.AddDependency(t.parent)
	return b
}
