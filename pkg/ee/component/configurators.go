package component

import (
	"fmt"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/naming"
	"github.com/toyz/eecore/pkg/ee/service"
)

// DefaultFirstConfigurator is always first in the queue. It puts the class loader
// switch at the head of every chain, marks the start of each method chain and
// resolves the view classes. A LifecycleAwareConfigurator later wraps the switch
// on method chains.
type DefaultFirstConfigurator struct{}

// Configure implements Configurator
func (DefaultFirstConfigurator) Configure(pc *PhaseContext, d *Description, c *Configuration) error {
	sw := interceptor.NewLoaderSwitch(c.ClassLoader())
	c.PostConstructInterceptors().AddLast(sw)
	c.PreDestroyInterceptors().AddLast(sw)
	for _, m := range c.DefinedComponentMethods() {
		c.ComponentInterceptorDeque(m).AddLast(sw, interceptor.InitialFactory)
	}

	resolver := c.ModuleConfiguration().Resolver
	for _, vd := range d.Views() {
		class, err := resolver.Resolve(vd.ClassName)
		if err != nil {
			return errors.NewDeploymentError(d.Name(), pc.DeploymentUnit.String(),
				fmt.Sprintf("could not load view class %s for component %s", vd.ClassName, d.Name())).
				WithCause(err)
		}
		c.views = append(c.views, newViewConfiguration(vd, class))
	}
	return nil
}

// InstantiateAndInjectConfigurator assembles the instance chains: object
// creation, field injection, lifecycle callbacks and around-invoke methods.
//
// Post-construct runs instantiation (interceptors first, component last), then
// injection, then the user callbacks of interceptors followed by those of the
// component hierarchy. Pre-destroy clears injected fields in the reverse order
// of injection, runs the user callbacks, and releases objects on the way back
// out in the reverse order of their creation.
type InstantiateAndInjectConfigurator struct {
	Hooks *LifecycleHooks
}

// Configure implements Configurator
func (cfg InstantiateAndInjectConfigurator) Configure(pc *PhaseContext, d *Description, c *Configuration) error {
	mc := c.ModuleConfiguration()
	compCC := c.ClassConfiguration()
	compClass := compCC.Class

	if c.InstanceFactory() == nil && !compClass.HasDefaultConstructor() {
		return fmt.Errorf("no default constructor for component class %s", compClass.Name)
	}

	var instantiators, injectors, uninjectors, destructors []interceptor.Factory
	addInjection := func(key any, cc *ClassConfiguration, inj InjectionConfiguration) error {
		field, ok := cc.Class.Field(inj.Target.Field)
		if !ok {
			return fmt.Errorf("injection target %s.%s does not exist", cc.Class.Name, inj.Target.Field)
		}
		if deps := inj.Source.Dependencies(); len(deps) > 0 {
			c.AddStartDependency(func(b *service.Builder) { b.AddDependency(deps...) })
		}
		injectors = append([]interceptor.Factory{&InjectorFactory{Key: key, Field: field, Source: inj.Source, Hooks: cfg.Hooks}}, injectors...)
		uninjectors = append(uninjectors, &UninjectorFactory{Key: key, Field: field, Hooks: cfg.Hooks})
		return nil
	}

	instantiators = append(instantiators, &InstantiatorFactory{
		Key: InstanceKey, Class: compClass, New: c.InstanceFactory(), Hooks: cfg.Hooks,
	})
	destructors = append(destructors, &DestructorFactory{Key: InstanceKey, ClassName: compClass.Name, Hooks: cfg.Hooks})
	for _, cc := range mc.Hierarchy(compCC) {
		for _, inj := range cc.Description.Injections {
			if err := addInjection(InstanceKey, cc, inj); err != nil {
				return err
			}
		}
	}

	var lifecycle []InterceptorDescription
	if !d.IsExcludeDefaultInterceptors() {
		lifecycle = append(lifecycle, d.DefaultInterceptors()...)
	}
	for _, desc := range d.ClassInterceptors() {
		if !containsInterceptor(lifecycle, desc) {
			lifecycle = append(lifecycle, desc)
		}
	}

	userPostConstruct := make(map[string][]interceptor.Factory)
	userPreDestroy := make(map[string][]interceptor.Factory)
	userAroundInvoke := make(map[string][]interceptor.Factory)

	for _, desc := range d.AllInterceptors() {
		icc, err := mc.ClassConfiguration(desc.ClassName)
		if err != nil {
			return fmt.Errorf("interceptor class %s on component %s: %w", desc.ClassName, d.Name(), err)
		}
		if !icc.Class.HasDefaultConstructor() {
			return fmt.Errorf("no default constructor for interceptor class %s on component %s", desc.ClassName, compClass.Name)
		}
		key := InterceptorKey(desc.ClassName)
		instantiators = append([]interceptor.Factory{&InstantiatorFactory{Key: key, Class: icc.Class, Hooks: cfg.Hooks}}, instantiators...)
		destructors = append(destructors, &DestructorFactory{Key: key, ClassName: desc.ClassName, Hooks: cfg.Hooks})

		hasLifecycle := containsInterceptor(lifecycle, desc)
		for _, hcc := range mc.Hierarchy(icc) {
			for _, inj := range hcc.Description.Injections {
				if err := addInjection(key, hcc, inj); err != nil {
					return err
				}
			}
			cd := hcc.Description
			if hasLifecycle {
				if m := declaredCallback(hcc.Class, cd.PostConstruct, icc.Class); m != nil {
					userPostConstruct[desc.ClassName] = append(userPostConstruct[desc.ClassName], &MethodInterceptorFactory{Key: key, Method: m, Kind: PostConstruct})
				}
				if m := declaredCallback(hcc.Class, cd.PreDestroy, icc.Class); m != nil {
					userPreDestroy[desc.ClassName] = append(userPreDestroy[desc.ClassName], &MethodInterceptorFactory{Key: key, Method: m, Kind: PreDestroy})
				}
			}
			if m := declaredCallback(hcc.Class, cd.AroundInvoke, icc.Class); m != nil {
				userAroundInvoke[desc.ClassName] = append(userAroundInvoke[desc.ClassName], &MethodInterceptorFactory{Key: key, Method: m, Kind: AroundInvoke})
			}
		}
	}

	var postConstruct, preDestroy, componentAroundInvoke []interceptor.Factory
	for _, desc := range lifecycle {
		postConstruct = append(postConstruct, userPostConstruct[desc.ClassName]...)
		preDestroy = append(preDestroy, userPreDestroy[desc.ClassName]...)
	}
	for _, cc := range mc.Hierarchy(compCC) {
		cd := cc.Description
		if m := declaredCallback(cc.Class, cd.PostConstruct, compClass); m != nil {
			postConstruct = append(postConstruct, &MethodInterceptorFactory{Key: InstanceKey, Method: m, Kind: PostConstruct})
		}
		if m := declaredCallback(cc.Class, cd.PreDestroy, compClass); m != nil {
			preDestroy = append(preDestroy, &MethodInterceptorFactory{Key: InstanceKey, Method: m, Kind: PreDestroy})
		}
		if m := declaredCallback(cc.Class, cd.AroundInvoke, compClass); m != nil {
			componentAroundInvoke = append(componentAroundInvoke, &MethodInterceptorFactory{Key: InstanceKey, Method: m, Kind: AroundInvoke})
		}
	}

	pcDeque := c.PostConstructInterceptors()
	pcDeque.AddLast(instantiators...)
	pcDeque.AddLast(injectors...)
	pcDeque.AddLast(postConstruct...)
	pcDeque.AddLast(interceptor.TerminalFactory)

	pdDeque := c.PreDestroyInterceptors()
	pdDeque.AddLast(uninjectors...)
	for i := len(destructors) - 1; i >= 0; i-- {
		pdDeque.AddLast(destructors[i])
	}
	pdDeque.AddLast(preDestroy...)
	pdDeque.AddLast(interceptor.TerminalFactory)

	for _, m := range c.DefinedComponentMethods() {
		dq := c.ComponentInterceptorDeque(m)
		if !d.IsExcludeDefaultInterceptors() && !d.IsExcludeDefaultInterceptorsFor(m.ID) {
			for _, desc := range d.DefaultInterceptors() {
				dq.AddLast(userAroundInvoke[desc.ClassName]...)
			}
		}
		if !d.IsExcludeClassInterceptorsFor(m.ID) {
			for _, desc := range d.ClassInterceptors() {
				dq.AddLast(userAroundInvoke[desc.ClassName]...)
			}
		}
		for _, desc := range d.MethodInterceptors(m.ID) {
			dq.AddLast(userAroundInvoke[desc.ClassName]...)
		}
		dq.AddLast(componentAroundInvoke...)
		dq.AddLast(&MethodInvokerFactory{Method: m})
	}

	pc.Log.WithField("component", d.Name()).
		WithField("interceptors", len(d.AllInterceptors())).
		WithField("injections", len(injectors)).
		Trace("instance chains assembled")
	return nil
}

// declaredCallback returns the method id names on declaring, or nil when there
// is none or actual overrides it. Private methods cannot be overridden.
func declaredCallback(declaring *classes.Class, id *classes.MethodIdentifier, actual *classes.Class) *classes.Method {
	if id == nil {
		return nil
	}
	m, ok := declaring.DeclaredMethod(*id)
	if !ok {
		return nil
	}
	if m.Private {
		return m
	}
	if resolved, ok := actual.Method(m.ID); ok && resolved.DeclaringClass != declaring {
		return nil
	}
	return m
}

// DispatchViewConfigurator ends every view method chain by handing the call to
// the component method chain of the associated instance. The instance chain is
// looked up per call, so it always belongs to the instance the association
// step picked.
type DispatchViewConfigurator struct{}

// ConfigureView implements ViewConfigurator
func (DispatchViewConfigurator) ConfigureView(pc *PhaseContext, c *Configuration, vd *ViewDescription, vc *ViewConfiguration) error {
	for _, vm := range vc.Methods() {
		target, ok := c.ComponentMethod(vm.ID)
		if !ok {
			return fmt.Errorf("view method %s of %s is not implemented by component %s",
				vm.ID, vd.ClassName, c.ComponentName())
		}
		vc.ViewInterceptorDeque(vm).AddLast(&dispatchFactory{method: target})
	}
	vc.ViewPostConstructInterceptors().AddLast(interceptor.TerminalFactory)
	vc.ViewPreDestroyInterceptors().AddLast(interceptor.TerminalFactory)
	return nil
}

type dispatchFactory struct {
	method *classes.Method
}

func (f *dispatchFactory) Create(*interceptor.FactoryContext) interceptor.Interceptor {
	return interceptor.Func(func(ctx *interceptor.Context) (any, error) {
		inst, ok := InstanceFrom(ctx)
		if !ok || inst == nil {
			return nil, errors.IllegalStatef("invoke", "no component instance associated with call to %s", f.method.ID)
		}
		chain, ok := inst.Interceptor(f.method.ID)
		if !ok {
			return nil, fmt.Errorf("component %s has no method %s", inst.Component().Name(), f.method.ID)
		}

		prevMethod, prevTarget := ctx.Method(), ctx.Target()
		ctx.SetMethod(f.method)
		ctx.SetTarget(inst.Target())
		defer func() {
			ctx.SetMethod(prevMethod)
			ctx.SetTarget(prevTarget)
		}()
		return chain.Process(ctx)
	})
}

// LifecycleAwareConfigurator installs a container-level interceptor that sees
// every lifecycle event and every invocation of the component. It must be
// queued ahead of InstantiateAndInjectConfigurator so its callbacks run before
// the lifecycle chains terminate.
type LifecycleAwareConfigurator struct {
	Interceptor interceptor.LifecycleAware
}

// Configure implements Configurator
func (l LifecycleAwareConfigurator) Configure(_ *PhaseContext, _ *Description, c *Configuration) error {
	c.PostConstructInterceptors().AddLast(interceptor.Immediate(interceptor.PostConstructAdapter(l.Interceptor)))
	c.PreDestroyInterceptors().AddLast(interceptor.Immediate(interceptor.PreDestroyAdapter(l.Interceptor)))
	for _, m := range c.DefinedComponentMethods() {
		c.ComponentInterceptorDeque(m).AddFirst(interceptor.Immediate(l.Interceptor))
	}
	return nil
}

// NamingContextConfigurator carries the description's environment bindings over
// and makes the component depend on its env context and on every service a
// binding needs.
type NamingContextConfigurator struct{}

// Configure implements Configurator
func (NamingContextConfigurator) Configure(_ *PhaseContext, d *Description, c *Configuration) error {
	envService := c.EnvContextServiceName()
	c.AddStartDependency(func(b *service.Builder) { b.AddDependency(envService) })

	for _, b := range d.Bindings() {
		if b.Name == "" || b.Source == nil {
			return fmt.Errorf("binding on component %s needs a name and a source", d.Name())
		}
		b.Name = naming.Qualify(b.Name)
		if deps := b.Source.Dependencies(); len(deps) > 0 {
			c.AddStartDependency(func(sb *service.Builder) { sb.AddDependency(deps...) })
		}
		c.AddBinding(b)
	}
	for name, t := range d.Dependencies() {
		name := name
		if t == Required {
			c.AddStartDependency(func(b *service.Builder) { b.AddDependency(name) })
		} else {
			c.AddStartDependency(func(b *service.Builder) { b.AddOptionalDependency(name) })
		}
	}
	return nil
}
