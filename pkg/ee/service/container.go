package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"ocm.software/open-component-model/bindings/go/dag"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
)

type entry struct {
	name     Name
	svc      Service
	required []Name
	optional []Name
	state    State
	err      error
}

// Container installs services and starts them in dependency order. Failures are
// isolated: a service that fails to start takes down only the services that
// require it.
type Container struct {
	lifecycle sync.Mutex

	mu      sync.RWMutex
	entries map[Name]*entry
	started []Name
	log     *logrus.Entry
}

// NewContainer creates an empty container
func NewContainer(log *logrus.Entry) *Container {
	return &Container{
		entries: make(map[Name]*entry),
		log:     logging.OrDefault(log).WithField("subsystem", "services"),
	}
}

// AddService implements Target
func (c *Container) AddService(name Name, svc Service) *Builder {
	return &Builder{name: name, svc: svc, install: c.install}
}

func (c *Container) install(b *Builder) error {
	if b.name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if b.svc == nil {
		return fmt.Errorf("service %s has no implementation", b.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, exists := c.entries[b.name]; exists && e.state != StateRemoved {
		return errors.NewRegistrationError("service", b.name.String(), "a service with this name is already installed")
	}
	c.entries[b.name] = &entry{
		name:     b.name,
		svc:      b.svc,
		required: dedupe(b.required),
		optional: dedupe(b.optional),
		state:    StateDown,
	}
	return nil
}

// Start starts every installed service that is down, dependencies first. Services
// installed by a starting service are picked up in the same call. The returned
// error aggregates all start failures.
func (c *Container) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	var failures *errors.MultipleErrors
	for {
		order, cycleErrs := c.plan()
		for _, err := range cycleErrs {
			errors.AddToMultiple(&failures, err)
		}
		if len(order) == 0 {
			break
		}
		for _, name := range order {
			if err := c.startOne(ctx, name); err != nil {
				errors.AddToMultiple(&failures, err)
			}
		}
	}
	return failures.ErrorOrNil()
}

// plan returns the down services in dependency order. Services whose edges would
// form a cycle are failed immediately.
func (c *Container) plan() ([]Name, []errors.ContainerError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	graph := dag.NewDirectedAcyclicGraph[Name]()
	for name, e := range c.entries {
		if e.state == StateRemoved {
			continue
		}
		if err := graph.AddVertex(name); err != nil {
			return nil, nil
		}
	}

	var failed []errors.ContainerError
	for _, name := range c.sortedNames() {
		e := c.entries[name]
		if e.state == StateRemoved {
			continue
		}
		for _, dep := range append(append([]Name{}, e.required...), e.optional...) {
			if !graph.Contains(dep) {
				continue
			}
			if err := graph.AddEdge(name, dep); err != nil {
				if e.state == StateDown {
					e.state, e.err = StateFailed, err
					failed = append(failed, errors.WrapDependencyError("service", dep.String(), err).
						WithContext("service", name.String()))
				}
			}
		}
	}

	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, append(failed, errors.WrapDependencyError("service", "graph", err))
	}

	var pending []Name
	for _, name := range order {
		if c.entries[name].state == StateDown {
			pending = append(pending, name)
		}
	}
	return pending, failed
}

func (c *Container) startOne(ctx context.Context, name Name) errors.ContainerError {
	c.mu.Lock()
	e := c.entries[name]
	if e.state != StateDown {
		c.mu.Unlock()
		return nil
	}
	values := make(map[Name]any)
	var missing errors.ContainerError
	for _, dep := range e.required {
		d, ok := c.entries[dep]
		switch {
		case !ok || d.state == StateRemoved:
			missing = errors.DependencyError("service", dep.String(), "required service is not installed")
		case d.state != StateUp:
			missing = errors.DependencyError("service", dep.String(), "required service is "+d.state.String())
		default:
			values[dep] = d.svc.Value()
			continue
		}
		break
	}
	for _, dep := range e.optional {
		if d, ok := c.entries[dep]; ok && d.state == StateUp {
			values[dep] = d.svc.Value()
		}
	}
	if missing != nil {
		e.state, e.err = StateFailed, missing
		c.mu.Unlock()
		c.log.WithField("service", name).WithError(missing).Warn("service not started")
		return missing
	}
	c.mu.Unlock()

	err := e.svc.Start(ctx, &StartContext{name: name, container: c, values: values})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		e.state, e.err = StateFailed, err
		c.log.WithField("service", name).WithError(err).Error("service failed to start")
		return errors.WrapWithOperation("start service", name.String(), err)
	}
	e.state, e.err = StateUp, nil
	c.started = append(c.started, name)
	c.log.WithField("service", name).Debug("service started")
	return nil
}

// Stop stops every running service in reverse start order. Stop failures are
// logged and collected; they never prevent remaining services from stopping.
func (c *Container) Stop(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	names := make([]Name, len(c.started))
	copy(names, c.started)
	c.mu.Unlock()

	var failures *errors.MultipleErrors
	for i := len(names) - 1; i >= 0; i-- {
		if err := c.stopOne(ctx, names[i]); err != nil {
			errors.AddToMultiple(&failures, err)
		}
	}
	return failures.ErrorOrNil()
}

// StopService stops name and, first, every running service that depends on it
func (c *Container) StopService(ctx context.Context, name Name) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if _, ok := c.entries[name]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("service %s is not installed", name)
	}
	affected := c.dependentsOf(name)
	var victims []Name
	for _, n := range c.started {
		if affected[n] {
			victims = append(victims, n)
		}
	}
	c.mu.Unlock()

	var failures *errors.MultipleErrors
	for i := len(victims) - 1; i >= 0; i-- {
		if err := c.stopOne(ctx, victims[i]); err != nil {
			errors.AddToMultiple(&failures, err)
		}
	}
	return failures.ErrorOrNil()
}

// Remove stops name with its dependents and uninstalls it
func (c *Container) Remove(ctx context.Context, name Name) error {
	err := c.StopService(ctx, name)
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		e.state = StateRemoved
	}
	c.mu.Unlock()
	return err
}

func (c *Container) stopOne(ctx context.Context, name Name) errors.ContainerError {
	c.mu.Lock()
	e := c.entries[name]
	if e.state != StateUp {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := e.svc.Stop(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.state = StateDown
	for i, n := range c.started {
		if n == name {
			c.started = append(c.started[:i], c.started[i+1:]...)
			break
		}
	}
	if err != nil {
		c.log.WithField("service", name).WithError(err).Warn("service failed to stop cleanly")
		return errors.NewCleanupError("service "+name.String(), err)
	}
	c.log.WithField("service", name).Debug("service stopped")
	return nil
}

// dependentsOf returns name plus every service that transitively depends on it
func (c *Container) dependentsOf(name Name) map[Name]bool {
	affected := map[Name]bool{name: true}
	for changed := true; changed; {
		changed = false
		for n, e := range c.entries {
			if affected[n] {
				continue
			}
			for _, dep := range append(append([]Name{}, e.required...), e.optional...) {
				if affected[dep] {
					affected[n] = true
					changed = true
					break
				}
			}
		}
	}
	return affected
}

// Value implements Registry
func (c *Container) Value(name Name) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok || e.state == StateRemoved {
		return nil, fmt.Errorf("service %s is not installed", name)
	}
	if e.state != StateUp {
		return nil, fmt.Errorf("service %s is %s", name, e.state)
	}
	return e.svc.Value(), nil
}

// State returns the state of name and the failure cause, if any
func (c *Container) State(name Name) (State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return StateRemoved, fmt.Errorf("service %s is not installed", name)
	}
	return e.state, e.err
}

// Names returns all installed service names, sorted
func (c *Container) Names() []Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedNames()
}

// StartOrder returns the running services in the order they started
func (c *Container) StartOrder() []Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Name, len(c.started))
	copy(out, c.started)
	return out
}

func (c *Container) sortedNames() []Name {
	names := make([]Name, 0, len(c.entries))
	for n, e := range c.entries {
		if e.state != StateRemoved {
			names = append(names, n)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func dedupe(names []Name) []Name {
	seen := make(map[Name]bool, len(names))
	out := make([]Name, 0, len(names))
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

var (
	_ Target   = (*Container)(nil)
	_ Registry = (*Container)(nil)
)
