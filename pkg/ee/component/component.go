package component

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

// State is the lifecycle state of a component
type State int

const (
	StateConstructed State = iota
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "CONSTRUCTED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Component is a live, installed component
type Component interface {
	Name() string
	Class() *classes.Class
	Configuration() *Configuration
	Environment() *Environment
	State() State
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CreateInstance(ctx context.Context) (*Instance, error)
	DestroyInstance(ctx context.Context, inst *Instance)
	View(className string) (*View, bool)
	Views() []*View
	Invoke(ctx context.Context, viewClass string, method classes.MethodIdentifier, args []any, data map[any]any) (any, error)
}

// Option configures a Basic component
type Option func(*Basic)

// WithOwner makes owner the component handed to interceptors and views. Variants
// that embed Basic pass themselves here.
func WithOwner(owner Component) Option {
	return func(b *Basic) { b.owner = owner }
}

// Basic implements the state machine and instance assembly shared by every
// component kind. Used on its own it behaves as a plain managed bean.
type Basic struct {
	cfg   *Configuration
	env   *Environment
	owner Component
	log   *logrus.Entry

	mu        sync.RWMutex
	state     State
	views     map[string]*View
	viewOrder []string

	live   sync.Map
	nextID atomic.Uint64
}

// NewBasic creates a component from a frozen configuration
func NewBasic(cfg *Configuration, env *Environment, opts ...Option) *Basic {
	if !cfg.Frozen() {
		panic("component: configuration of " + cfg.ComponentName() + " has not been frozen")
	}
	if env == nil {
		env = &Environment{}
	}
	b := &Basic{
		cfg:   cfg,
		env:   env,
		state: StateConstructed,
		views: make(map[string]*View),
	}
	b.owner = b
	for _, opt := range opts {
		opt(b)
	}
	b.log = env.logger().WithField("component", cfg.ComponentName())
	return b
}

// NewComponent creates the component described by cfg using the description's
// factory, or a Basic component when none is set
func NewComponent(cfg *Configuration, env *Environment) (Component, error) {
	if f := cfg.Description().Factory(); f != nil {
		return f(cfg, env)
	}
	return NewBasic(cfg, env), nil
}

// Name implements Component
func (b *Basic) Name() string { return b.cfg.ComponentName() }

// Class implements Component
func (b *Basic) Class() *classes.Class { return b.cfg.ComponentClass() }

// Configuration implements Component
func (b *Basic) Configuration() *Configuration { return b.cfg }

// Environment implements Component
func (b *Basic) Environment() *Environment { return b.env }

// Log returns the component logger
func (b *Basic) Log() *logrus.Entry { return b.log }

// State implements Component
func (b *Basic) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Start implements Component. It builds the views and permits instance creation.
func (b *Basic) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateConstructed {
		return errors.NewIllegalStateError("start", b.state.String(),
			fmt.Sprintf("component %s cannot be started from state %s", b.Name(), b.state))
	}

	for _, vc := range b.cfg.views {
		v, err := newView(ctx, b.owner, vc)
		if err != nil {
			b.stopViews(ctx)
			return fmt.Errorf("start view %s of %s: %w", vc.viewClass.Name, b.Name(), err)
		}
		b.views[vc.viewClass.Name] = v
		b.viewOrder = append(b.viewOrder, vc.viewClass.Name)
	}
	b.state = StateStarted
	b.log.WithField("state", b.state).Debug("component started")
	return nil
}

// Stop implements Component. Instances still alive are destroyed; failures are
// logged and do not stop the rest of the teardown.
func (b *Basic) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateStopped {
		b.mu.Unlock()
		return nil
	}
	b.state = StateStopped
	b.mu.Unlock()

	var failures *errors.MultipleErrors
	for _, inst := range b.LiveInstances() {
		if err := inst.Destroy(ctx); err != nil {
			errors.AddToMultiple(&failures, errors.NewCleanupError("instance of "+b.Name(), err))
		}
	}

	b.mu.Lock()
	b.stopViews(ctx)
	b.mu.Unlock()

	b.log.WithField("state", StateStopped).Debug("component stopped")
	return failures.ErrorOrNil()
}

func (b *Basic) stopViews(ctx context.Context) {
	for i := len(b.viewOrder) - 1; i >= 0; i-- {
		name := b.viewOrder[i]
		if err := b.views[name].destroy(ctx); err != nil {
			b.log.WithError(err).WithField("view", name).Warn("view pre-destroy failed")
		}
	}
	b.views = make(map[string]*View)
	b.viewOrder = nil
}

// CreateInstance implements Component. It assembles a new instance and runs its
// post-construct chain.
func (b *Basic) CreateInstance(ctx context.Context) (*Instance, error) {
	if state := b.State(); state != StateStarted {
		return nil, errors.NewIllegalStateError("create instance", state.String(),
			fmt.Sprintf("component %s is %s, instances can only be created while started", b.Name(), state))
	}

	fc := interceptor.NewFactoryContext()
	fc.Set(ComponentKey, b.owner)

	inst := &Instance{
		id:         b.nextID.Add(1),
		component:  b.owner,
		target:     fc.Ref(InstanceKey),
		methods:    make(map[classes.MethodIdentifier]interceptor.Interceptor, len(b.cfg.methods)),
		preDestroy: b.cfg.preDestroy.Create(fc),
		onDestroy:  b.untrack,
	}
	postConstruct := b.cfg.postConstruct.Create(fc)
	for _, m := range b.cfg.methods {
		inst.methods[m.ID] = b.cfg.methodDeques[m.ID].Create(fc)
	}

	ic := inst.newContext(ctx)
	if _, err := postConstruct.Process(ic); err != nil {
		return nil, fmt.Errorf("construct instance of %s: %w", b.Name(), err)
	}

	// Stop may have run during post-construct and would not see this instance.
	b.mu.RLock()
	state := b.state
	if state == StateStarted {
		b.live.Store(inst.id, inst)
	}
	b.mu.RUnlock()
	if state != StateStarted {
		b.DestroyInstance(ctx, inst)
		return nil, errors.NewIllegalStateError("create instance", state.String(),
			fmt.Sprintf("component %s was stopped while an instance was being constructed", b.Name()))
	}
	return inst, nil
}

// DestroyInstance implements Component
func (b *Basic) DestroyInstance(ctx context.Context, inst *Instance) {
	if inst == nil {
		return
	}
	if err := inst.Destroy(ctx); err != nil {
		b.log.WithError(err).WithField("instance", inst.id).Warn("instance pre-destroy failed")
	}
}

func (b *Basic) untrack(inst *Instance) {
	b.live.Delete(inst.id)
}

// LiveInstances returns the instances created and not yet destroyed, oldest first
func (b *Basic) LiveInstances() []*Instance {
	var out []*Instance
	b.live.Range(func(_, v any) bool {
		out = append(out, v.(*Instance))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// View implements Component
func (b *Basic) View(className string) (*View, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.views[className]
	return v, ok
}

// Views implements Component
func (b *Basic) Views() []*View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*View, 0, len(b.viewOrder))
	for _, name := range b.viewOrder {
		out = append(out, b.views[name])
	}
	return out
}

// Invoke implements Component. It is the entry point for callers: the call goes
// through the view chain, which associates an instance and dispatches to it.
func (b *Basic) Invoke(ctx context.Context, viewClass string, method classes.MethodIdentifier, args []any, data map[any]any) (any, error) {
	if state := b.State(); state != StateStarted {
		return nil, errors.NewIllegalStateError("invoke", state.String(),
			fmt.Sprintf("component %s is not started", b.Name()))
	}
	v, ok := b.View(viewClass)
	if !ok {
		return nil, fmt.Errorf("component %s has no view %s", b.Name(), viewClass)
	}
	return v.Invoke(ctx, method, args, data)
}

var _ Component = (*Basic)(nil)
