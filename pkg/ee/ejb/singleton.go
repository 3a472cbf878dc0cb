package ejb

import (
	"context"
	"fmt"
	"sync"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

// Singleton shares one instance between all callers. The instance is created on
// first use, or during Start when the component is marked init-on-startup.
type Singleton struct {
	*component.Basic
	initOnStartup bool

	mu       sync.Mutex
	instance *component.Instance
}

// NewSingleton creates a singleton component
func NewSingleton(cfg *component.Configuration, env *component.Environment, initOnStartup bool) *Singleton {
	s := &Singleton{initOnStartup: initOnStartup}
	s.Basic = component.NewBasic(cfg, env, component.WithOwner(s))
	return s
}

// Kind implements Bean
func (s *Singleton) Kind() Kind { return KindSingleton }

// InitOnStartup reports whether the instance is created during Start
func (s *Singleton) InitOnStartup() bool { return s.initOnStartup }

// Start starts the component and creates the instance eagerly if asked to
func (s *Singleton) Start(ctx context.Context) error {
	if err := s.Basic.Start(ctx); err != nil {
		return err
	}
	if !s.initOnStartup {
		return nil
	}
	if _, err := s.ComponentInstance(ctx); err != nil {
		if serr := s.Basic.Stop(ctx); serr != nil {
			s.Log().WithError(serr).Warn("stop after failed startup initialization")
		}
		return fmt.Errorf("initialize singleton %s on startup: %w", s.Name(), err)
	}
	s.Log().Debug("singleton initialized on startup")
	return nil
}

// Stop destroys the instance through its pre-destroy chain, then stops the component
func (s *Singleton) Stop(ctx context.Context) error {
	s.mu.Lock()
	inst := s.instance
	s.instance = nil
	s.mu.Unlock()

	var failures *errors.MultipleErrors
	if inst != nil {
		if err := inst.Destroy(ctx); err != nil {
			errors.AddToMultiple(&failures, errors.NewCleanupError("singleton "+s.Name(), err))
		}
	}
	if err := s.Basic.Stop(ctx); err != nil {
		errors.AddToMultiple(&failures, errors.NewCleanupError("component "+s.Name(), err))
	}
	return failures.ErrorOrNil()
}

// ComponentInstance implements SingleInstance. Concurrent first calls create
// exactly one instance.
func (s *Singleton) ComponentInstance(ctx context.Context) (*component.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instance != nil {
		return s.instance, nil
	}
	return s.createLocked(ctx)
}

// CreateInstance fails once the single instance exists
func (s *Singleton) CreateInstance(ctx context.Context) (*component.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instance != nil {
		return nil, errors.IllegalStatef("create instance",
			"a singleton component instance has already been created for bean %s", s.Name())
	}
	return s.createLocked(ctx)
}

func (s *Singleton) createLocked(ctx context.Context) (*component.Instance, error) {
	inst, err := s.Basic.CreateInstance(ctx)
	if err != nil {
		return nil, err
	}
	s.instance = inst
	return inst, nil
}

func (s *Singleton) associate(ctx *interceptor.Context) (any, error) {
	inst, err := s.ComponentInstance(ctx.Context())
	if err != nil {
		return nil, err
	}
	return withInstance(ctx, inst)
}

var (
	_ Bean           = (*Singleton)(nil)
	_ SingleInstance = (*Singleton)(nil)
)
