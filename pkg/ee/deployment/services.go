package deployment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/naming"
	"github.com/toyz/eecore/pkg/ee/service"
)

// envService provides a java:comp context with its env subcontext. One is
// shared by the module; components using their own namespace get another.
type envService struct {
	name string
	comp *naming.Context
}

func newEnvService(name string) *envService {
	return &envService{name: name}
}

func (s *envService) Start(context.Context, *service.StartContext) error {
	s.comp = naming.NewContext(naming.CompPrefix)
	if _, err := s.comp.CreateSubcontext("env"); err != nil {
		return fmt.Errorf("create env context for %s: %w", s.name, err)
	}
	return nil
}

func (s *envService) Stop(context.Context) error {
	s.comp = nil
	return nil
}

func (s *envService) Value() any { return s.comp }

// componentService owns one running component. Every start builds a fresh
// component from the frozen configuration.
type componentService struct {
	cfg        *component.Configuration
	envService service.Name
	global     *naming.Context
	app        *naming.Context
	module     *naming.Context
	log        *logrus.Entry

	comp  component.Component
	ns    *naming.Namespaces
	bound []string
}

func (s *componentService) Start(ctx context.Context, sc *service.StartContext) error {
	v, ok := sc.Dependency(s.envService)
	comp, isCtx := v.(*naming.Context)
	if !ok || !isCtx {
		return errors.DependencyError("naming context", s.envService.String(), "env context is not available")
	}
	s.ns = &naming.Namespaces{Global: s.global, App: s.app, Module: s.module, Comp: comp}
	env := &component.Environment{
		Naming:   s.ns,
		Services: sc.Registry(),
		Log:      s.log.WithField("component", s.cfg.ComponentName()),
	}

	for _, b := range s.cfg.Bindings() {
		source := b.Source
		ref := naming.ReferenceFunc(func(ctx context.Context) (any, error) {
			v, err := source.Resolve(ctx, env)
			if err != nil {
				return nil, err
			}
			if f, ok := v.(naming.ReferenceFactory); ok {
				return f.Reference(ctx)
			}
			return v, nil
		})
		if err := s.ns.Bind(b.Name, ref); err != nil {
			s.unbind()
			return fmt.Errorf("bind %s for %s: %w", b.Name, s.cfg.ComponentName(), err)
		}
		s.bound = append(s.bound, b.Name)
	}

	c, err := component.NewComponent(s.cfg, env)
	if err == nil {
		err = c.Start(ctx)
	}
	if err != nil {
		s.unbind()
		return err
	}
	s.comp = c
	return nil
}

func (s *componentService) Stop(ctx context.Context) error {
	c := s.comp
	s.comp = nil
	s.unbind()
	if c == nil {
		return nil
	}
	return c.Stop(ctx)
}

func (s *componentService) Value() any { return s.comp }

func (s *componentService) unbind() {
	for i := len(s.bound) - 1; i >= 0; i-- {
		if err := s.ns.Unbind(s.bound[i]); err != nil {
			s.log.WithError(err).WithField("name", s.bound[i]).Debug("unbind failed")
		}
	}
	s.bound = nil
}

// viewService exposes one view of a started component and binds it in the
// module context as <component>!<view class>
type viewService struct {
	component service.Name
	viewClass string
	module    *naming.Context
	bindName  string

	view *component.View
}

func (s *viewService) Start(_ context.Context, sc *service.StartContext) error {
	v, _ := sc.Dependency(s.component)
	c, ok := v.(component.Component)
	if !ok {
		return errors.DependencyError("component", s.component.String(), "component is not running")
	}
	view, ok := c.View(s.viewClass)
	if !ok {
		return fmt.Errorf("component %s has no view %s", c.Name(), s.viewClass)
	}
	s.bindName = c.Name() + "!" + s.viewClass
	if err := s.module.Rebind(s.bindName, view); err != nil {
		return err
	}
	s.view = view
	return nil
}

func (s *viewService) Stop(context.Context) error {
	s.view = nil
	if s.bindName != "" {
		_ = s.module.Unbind(s.bindName)
	}
	return nil
}

func (s *viewService) Value() any {
	if s.view == nil {
		return nil
	}
	return s.view
}
