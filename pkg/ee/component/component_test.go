package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/service"
)

const (
	greeterClass     = "app.Greeter"
	greeterView      = "app.GreeterLocal"
	baseClass        = "app.BaseGreeter"
	defaultICClass   = "app.AuditInterceptor"
	classICClass     = "app.TxInterceptor"
	methodICClass    = "app.TraceInterceptor"
	noCtorClass      = "app.BrokenInterceptor"
	unit             = service.Name("deployment.test.jar")
	interceptMethod  = "intercept"
	greetingField    = "greeting"
	farewellField    = "farewell"
	interceptorField = "name"
)

var (
	fooID       = classes.NewMethodIdentifier("string", "foo")
	barID       = classes.NewMethodIdentifier("string", "bar")
	failID      = classes.VoidMethod("fail")
	interceptM  = classes.VoidMethod(interceptMethod)
	initID      = classes.VoidMethod("init")
	cleanupID   = classes.VoidMethod("cleanup")
	aroundID    = classes.VoidMethod("around")
	errBusiness = stderrors.New("business failure")
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type greeter struct {
	Greeting any
	Farewell any
}

type namedInterceptor struct {
	Name any
}

// fixture builds a small module: a greeter component extending a base class,
// three interceptor classes and a view interface.
type fixture struct {
	rec    *recorder
	loader *classes.Loader
	module *ModuleDescription
	mc     *ModuleConfiguration
}

func newFixture() *fixture {
	f := &fixture{rec: &recorder{}}

	base := classes.NewClass(baseClass, func() (any, error) { return &greeter{}, nil }).
		DeclarePrivate(initID, f.callback(baseClass+".init")).
		DeclareField(farewellField, func(target, v any) error {
			target.(*greeter).Farewell = v
			return nil
		})
	comp := classes.NewClass(greeterClass, func() (any, error) { return &greeter{}, nil }).
		Extends(base).
		Declare(fooID, func(target any, inv classes.Invocation) (any, error) {
			f.rec.add("foo")
			return fmt.Sprintf("foo:%v", target.(*greeter).Greeting), nil
		}).
		Declare(barID, func(target any, inv classes.Invocation) (any, error) {
			f.rec.add("bar")
			return "bar", nil
		}).
		Declare(failID, func(any, classes.Invocation) (any, error) { return nil, errBusiness }).
		DeclarePrivate(initID, f.callback(greeterClass+".init")).
		DeclarePrivate(cleanupID, func(target any, _ classes.Invocation) (any, error) {
			f.rec.add(fmt.Sprintf("%s.cleanup greeting=%v", greeterClass, target.(*greeter).Greeting))
			return nil, nil
		}).
		DeclarePrivate(aroundID, f.around(greeterClass)).
		DeclareField(greetingField, func(target, v any) error {
			target.(*greeter).Greeting = v
			return nil
		})
	view := classes.NewInterface(greeterView).Declare(fooID, nil)

	f.loader = classes.NewLoader("test", nil).MustDefine(base, comp, view,
		f.interceptorClass(defaultICClass),
		f.interceptorClass(classICClass),
		f.interceptorClass(methodICClass),
		classes.NewClass(noCtorClass, nil).DeclarePrivate(interceptM, f.around(noCtorClass)),
	)

	f.module = NewModuleDescription("app", "test")
	bd := f.module.GetOrAddClass(baseClass)
	bd.PostConstruct = &initID
	bd.AddInjection(farewellField, ImmediateSource{Value: "bye"})

	cd := f.module.GetOrAddClass(greeterClass)
	cd.PostConstruct = &initID
	cd.PreDestroy = &cleanupID
	cd.AroundInvoke = &aroundID
	cd.AddInjection(greetingField, ImmediateSource{Value: "hello"})

	for _, name := range []string{defaultICClass, classICClass, methodICClass} {
		icd := f.module.GetOrAddClass(name)
		icd.AroundInvoke = &interceptM
		icd.PostConstruct = &initID
		icd.PreDestroy = &cleanupID
		icd.AddInjection(interceptorField, ImmediateSource{Value: name})
	}
	f.module.GetOrAddClass(noCtorClass).AroundInvoke = &interceptM

	f.mc = NewModuleConfiguration(f.module, f.loader)
	return f
}

func (f *fixture) interceptorClass(name string) *classes.Class {
	return classes.NewClass(name, func() (any, error) { return &namedInterceptor{}, nil }).
		DeclarePrivate(interceptM, f.around(name)).
		DeclarePrivate(initID, f.callback(name+".init")).
		DeclarePrivate(cleanupID, f.callback(name+".cleanup")).
		DeclareField(interceptorField, func(target, v any) error {
			target.(*namedInterceptor).Name = v
			return nil
		})
}

func (f *fixture) callback(event string) classes.MethodFunc {
	return func(any, classes.Invocation) (any, error) {
		f.rec.add(event)
		return nil, nil
	}
}

func (f *fixture) around(name string) classes.MethodFunc {
	return func(_ any, inv classes.Invocation) (any, error) {
		f.rec.add(name)
		return inv.Proceed()
	}
}

func (f *fixture) description() *Description {
	d := NewDescription("Greeter", greeterClass, f.module, unit)
	d.AddConfigurator(InstantiateAndInjectConfigurator{Hooks: &LifecycleHooks{
		OnEvent: func(e HookEvent, subject string) { f.rec.add(e.String() + " " + subject) },
	}})
	return d
}

func (f *fixture) configure(d *Description) (*Configuration, error) {
	pc := NewPhaseContext(context.Background(), unit, f.loader, logging.Discard())
	return Configure(pc, d, f.mc)
}

func aroundInvokeOrder(dq *interceptor.Deque) []string {
	var out []string
	for _, item := range dq.Items() {
		if mf, ok := item.(*MethodInterceptorFactory); ok && mf.Kind == AroundInvoke {
			out = append(out, mf.Method.DeclaringClass.Name)
		}
	}
	return out
}

func TestAllInterceptorsMemo(t *testing.T) {
	f := newFixture()
	d := f.description()

	assert.Empty(t, d.AllInterceptors())
	assert.NotNil(t, d.AllInterceptors())

	d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
	first := d.AllInterceptors()
	assert.Equal(t, first, d.AllInterceptors())
	assert.Equal(t, []InterceptorDescription{{ClassName: classICClass}}, first)

	first[0].ClassName = "app.Tampered"
	assert.Equal(t, []InterceptorDescription{{ClassName: classICClass}}, d.AllInterceptors(), "callers cannot edit the memo")

	assert.False(t, d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass}))

	d.SetDefaultInterceptors([]InterceptorDescription{{ClassName: defaultICClass}})
	assert.Equal(t, []InterceptorDescription{{ClassName: classICClass}, {ClassName: defaultICClass}}, d.AllInterceptors())

	d.SetExcludeDefaultInterceptors(true)
	assert.Equal(t, []InterceptorDescription{{ClassName: classICClass}}, d.AllInterceptors())

	d.AddMethodInterceptor(fooID, InterceptorDescription{ClassName: methodICClass})
	d.AddMethodInterceptor(barID, InterceptorDescription{ClassName: classICClass})
	assert.Equal(t, []InterceptorDescription{{ClassName: classICClass}, {ClassName: methodICClass}}, d.AllInterceptors())

	d.SetClassInterceptors(nil)
	assert.Equal(t, []InterceptorDescription{{ClassName: methodICClass}, {ClassName: classICClass}}, d.AllInterceptors())
	assert.True(t, f.module.HasClass(methodICClass))
}

func TestAddDependencyRequiredDominates(t *testing.T) {
	f := newFixture()
	d := f.description()
	dep := service.NewName("jboss", "datasource")

	d.AddDependency(dep, Optional)
	d.AddDependency(dep, Required)
	d.AddDependency(dep, Optional)
	assert.Equal(t, Required, d.Dependencies()[dep])

	assert.Panics(t, func() { d.AddDependency("", Required) })
	assert.Panics(t, func() { d.AddDependency(dep, DependencyType(42)) })
}

func TestNewDescriptionRequiresArguments(t *testing.T) {
	md := NewModuleDescription("app", "mod")
	assert.Panics(t, func() { NewDescription("", "a.B", md, unit) })
	assert.Panics(t, func() { NewDescription("B", "", md, unit) })
	assert.Panics(t, func() { NewDescription("B", "a.B", nil, unit) })
	assert.Panics(t, func() { NewDescription("B", "a.B", md, "") })

	d := NewDescription("B", "a.B", md, unit)
	assert.Equal(t, unit.Append("component", "B"), d.ServiceName())
	require.Len(t, d.Configurators(), 1)
	assert.IsType(t, DefaultFirstConfigurator{}, d.Configurators()[0])
}

func TestAroundInvokeOrder(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *Description)
		foo   []string
		bar   []string
	}{
		{
			name: "class and method interceptors",
			setup: func(d *Description) {
				d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
				d.AddMethodInterceptor(fooID, InterceptorDescription{ClassName: methodICClass})
			},
			foo: []string{classICClass, methodICClass, greeterClass},
			bar: []string{classICClass, greeterClass},
		},
		{
			name: "default interceptors come first",
			setup: func(d *Description) {
				d.SetDefaultInterceptors([]InterceptorDescription{{ClassName: defaultICClass}})
				d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
				d.AddMethodInterceptor(fooID, InterceptorDescription{ClassName: methodICClass})
			},
			foo: []string{defaultICClass, classICClass, methodICClass, greeterClass},
			bar: []string{defaultICClass, classICClass, greeterClass},
		},
		{
			name: "method excludes default and class",
			setup: func(d *Description) {
				d.SetDefaultInterceptors([]InterceptorDescription{{ClassName: defaultICClass}})
				d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
				d.AddMethodInterceptor(fooID, InterceptorDescription{ClassName: methodICClass})
				d.ExcludeDefaultInterceptors(fooID)
				d.ExcludeClassInterceptors(fooID)
			},
			foo: []string{methodICClass, greeterClass},
			bar: []string{defaultICClass, classICClass, greeterClass},
		},
		{
			name: "class level default exclusion",
			setup: func(d *Description) {
				d.SetDefaultInterceptors([]InterceptorDescription{{ClassName: defaultICClass}})
				d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
				d.SetExcludeDefaultInterceptors(true)
			},
			foo: []string{classICClass, greeterClass},
			bar: []string{classICClass, greeterClass},
		},
		{
			name: "method replacement",
			setup: func(d *Description) {
				d.SetDefaultInterceptors([]InterceptorDescription{{ClassName: defaultICClass}})
				d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
				d.SetMethodInterceptors(barID, []InterceptorDescription{{ClassName: methodICClass}})
			},
			foo: []string{defaultICClass, classICClass, greeterClass},
			bar: []string{methodICClass, greeterClass},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			d := f.description()
			tt.setup(d)

			c, err := f.configure(d)
			require.NoError(t, err)

			foo, _ := c.ComponentMethod(fooID)
			bar, _ := c.ComponentMethod(barID)
			assert.Equal(t, tt.foo, aroundInvokeOrder(c.ComponentInterceptorDeque(foo)))
			assert.Equal(t, tt.bar, aroundInvokeOrder(c.ComponentInterceptorDeque(bar)))
		})
	}
}

func TestLoaderSwitchPlacement(t *testing.T) {
	f := newFixture()
	lc := &countingLifecycle{}
	d := NewDescription("Greeter", greeterClass, f.module, unit)
	d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
	d.AddConfigurator(LifecycleAwareConfigurator{Interceptor: lc})
	d.AddConfigurator(InstantiateAndInjectConfigurator{})

	c, err := f.configure(d)
	require.NoError(t, err)
	assert.True(t, c.Frozen())

	for _, dq := range []*interceptor.Deque{c.PostConstructInterceptors(), c.PreDestroyInterceptors()} {
		items := dq.Items()
		require.NotEmpty(t, items)
		sw, ok := items[0].(*interceptor.LoaderSwitch)
		require.True(t, ok, "first entry is %T", items[0])
		assert.Same(t, f.loader, sw.Loader)
		assert.Equal(t, interceptor.TerminalFactory, items[len(items)-1])
	}

	// the lifecycle-aware interceptor wraps the whole method chain
	for _, m := range c.DefinedComponentMethods() {
		items := c.ComponentInterceptorDeque(m).Items()
		require.GreaterOrEqual(t, len(items), 4)
		wrapped, ok := items[0].(interface{ Unwrap() interceptor.Interceptor })
		require.True(t, ok)
		assert.Same(t, lc, wrapped.Unwrap())
		_, ok = items[1].(*interceptor.LoaderSwitch)
		assert.True(t, ok, "method %s continues with %T", m.ID, items[1])
		assert.Equal(t, interceptor.InitialFactory, items[2])
		_, ok = items[len(items)-1].(*MethodInvokerFactory)
		assert.True(t, ok)
	}
	assert.Panics(t, func() { c.PostConstructInterceptors().AddLast(interceptor.TerminalFactory) })
}

func TestDefinedComponentMethods(t *testing.T) {
	f := newFixture()
	c, err := f.configure(f.description())
	require.NoError(t, err)

	var ids []classes.MethodIdentifier
	for _, m := range c.DefinedComponentMethods() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []classes.MethodIdentifier{fooID, barID, failID}, ids)
}

func TestMissingInterceptorConstructor(t *testing.T) {
	f := newFixture()
	d := f.description()
	d.AddClassInterceptor(InterceptorDescription{ClassName: noCtorClass})

	_, err := f.configure(d)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.DeploymentErrorCode))
	assert.Contains(t, err.Error(), "no default constructor for interceptor class app.BrokenInterceptor on component app.Greeter")

	var de *errors.DeploymentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Greeter", de.Component)
	assert.Equal(t, unit.String(), de.DeploymentUnit)
}

func TestViewClassNotFound(t *testing.T) {
	f := newFixture()
	d := f.description()
	d.AddView("app.Missing")

	_, err := f.configure(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not load view class app.Missing for component Greeter")
	assert.ErrorIs(t, err, classes.ErrClassNotFound)
}

func TestUnknownInterceptorClass(t *testing.T) {
	f := newFixture()
	d := f.description()
	d.AddMethodInterceptor(fooID, InterceptorDescription{ClassName: "app.Nowhere"})

	_, err := f.configure(d)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.DeploymentErrorCode))
	assert.ErrorIs(t, err, classes.ErrClassNotFound)
}

type countingLifecycle struct {
	mu                                   sync.Mutex
	constructed, destroyed, invocations int
}

func (c *countingLifecycle) Process(ctx *interceptor.Context) (any, error) {
	c.mu.Lock()
	c.invocations++
	c.mu.Unlock()
	return ctx.Proceed()
}

func (c *countingLifecycle) PostConstruct(ctx *interceptor.Context) (any, error) {
	c.mu.Lock()
	c.constructed++
	c.mu.Unlock()
	return ctx.Proceed()
}

func (c *countingLifecycle) PreDestroy(ctx *interceptor.Context) (any, error) {
	c.mu.Lock()
	c.destroyed++
	c.mu.Unlock()
	return ctx.Proceed()
}

// gatedLifecycle holds post-construct until gate is closed
type gatedLifecycle struct {
	countingLifecycle
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedLifecycle) PostConstruct(ctx *interceptor.Context) (any, error) {
	close(g.entered)
	<-g.gate
	return g.countingLifecycle.PostConstruct(ctx)
}

// ComponentTestSuite exercises a started component built from the fixture
type ComponentTestSuite struct {
	suite.Suite
	f    *fixture
	d    *Description
	comp *Basic
	ctx  context.Context
}

func (s *ComponentTestSuite) SetupTest() {
	s.f = newFixture()
	s.d = s.f.description()
	s.d.AddClassInterceptor(InterceptorDescription{ClassName: classICClass})
	s.d.AddMethodInterceptor(fooID, InterceptorDescription{ClassName: methodICClass})
	s.d.AddView(greeterView)
	s.ctx = context.Background()
}

func (s *ComponentTestSuite) start() {
	c, err := s.f.configure(s.d)
	s.Require().NoError(err)
	s.comp = NewBasic(c, &Environment{Log: logging.Discard()})
	s.Require().NoError(s.comp.Start(s.ctx))
	s.f.rec.take()
}

func (s *ComponentTestSuite) TestLifecycleRoundTrip() {
	s.start()

	inst, err := s.comp.CreateInstance(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{
		"instantiate " + methodICClass,
		"instantiate " + classICClass,
		"instantiate " + greeterClass,
		"inject " + methodICClass + "." + interceptorField,
		"inject " + classICClass + "." + interceptorField,
		"inject " + greeterClass + "." + greetingField,
		"inject " + baseClass + "." + farewellField,
		classICClass + ".init",
		baseClass + ".init",
		greeterClass + ".init",
	}, s.f.rec.take())

	g := inst.Target().(*greeter)
	s.Equal("hello", g.Greeting)
	s.Equal("bye", g.Farewell)

	s.Require().NoError(inst.Destroy(s.ctx))
	s.Equal([]string{
		"uninject " + baseClass + "." + farewellField,
		"uninject " + greeterClass + "." + greetingField,
		"uninject " + classICClass + "." + interceptorField,
		"uninject " + methodICClass + "." + interceptorField,
		classICClass + ".cleanup",
		greeterClass + ".cleanup greeting=<nil>",
		"destroy " + greeterClass,
		"destroy " + classICClass,
		"destroy " + methodICClass,
	}, s.f.rec.take())

	s.True(inst.Destroyed())
	s.Nil(inst.Target())

	s.NoError(inst.Destroy(s.ctx))
	s.Empty(s.f.rec.take())
}

func (s *ComponentTestSuite) TestInvokeRunsChainInOrder() {
	s.start()
	inst, err := s.comp.CreateInstance(s.ctx)
	s.Require().NoError(err)
	s.f.rec.take()

	res, err := inst.Invoke(s.ctx, fooID)
	s.Require().NoError(err)
	s.Equal("foo:hello", res)
	s.Equal([]string{classICClass, methodICClass, greeterClass, "foo"}, s.f.rec.take())

	res, err = inst.Invoke(s.ctx, barID)
	s.Require().NoError(err)
	s.Equal("bar", res)
	s.Equal([]string{classICClass, greeterClass, "bar"}, s.f.rec.take())
}

func (s *ComponentTestSuite) TestInvokeSetsClassLoader() {
	var seen *classes.Loader
	loader := classes.NewLoader("probe", nil)
	probe := classes.NewClass("app.Probe", func() (any, error) { return &namedInterceptor{}, nil }).
		DeclarePrivate(interceptM, func(_ any, inv classes.Invocation) (any, error) {
			seen = inv.(*interceptor.Context).ClassLoader()
			return inv.Proceed()
		})
	s.Require().NoError(s.f.loader.Define(probe))
	s.f.module.GetOrAddClass("app.Probe").AroundInvoke = &interceptM
	s.d.AddMethodInterceptor(barID, InterceptorDescription{ClassName: "app.Probe"})
	s.start()

	inst, err := s.comp.CreateInstance(s.ctx)
	s.Require().NoError(err)

	ic := interceptor.NewContext(s.ctx)
	ic.SetClassLoader(loader)
	ic.SetPrivateData(InstanceDataKey, inst)
	chain, ok := inst.Interceptor(barID)
	s.Require().True(ok)
	_, err = chain.Process(ic)
	s.Require().NoError(err)

	s.Same(s.f.loader, seen)
	s.Same(loader, ic.ClassLoader())
}

func (s *ComponentTestSuite) TestBusinessErrorPropagatesUnchanged() {
	s.start()
	inst, err := s.comp.CreateInstance(s.ctx)
	s.Require().NoError(err)

	_, err = inst.Invoke(s.ctx, failID)
	s.ErrorIs(err, errBusiness)
	s.Same(errBusiness, err)
}

func (s *ComponentTestSuite) TestViewDispatchNeedsInstance() {
	s.start()

	v, ok := s.comp.View(greeterView)
	s.Require().True(ok)
	s.Equal(unit.Append("component", "Greeter", "VIEW", greeterView), v.ServiceName())

	_, err := s.comp.Invoke(s.ctx, greeterView, fooID, nil, nil)
	s.True(errors.HasCode(err, errors.IllegalStateErrorCode))

	inst, err := s.comp.CreateInstance(s.ctx)
	s.Require().NoError(err)
	s.f.rec.take()

	res, err := s.comp.Invoke(s.ctx, greeterView, fooID, nil, map[any]any{InstanceDataKey: inst})
	s.Require().NoError(err)
	s.Equal("foo:hello", res)
	s.Equal([]string{classICClass, methodICClass, greeterClass, "foo"}, s.f.rec.take())

	_, err = s.comp.Invoke(s.ctx, greeterView, barID, nil, map[any]any{InstanceDataKey: inst})
	s.Error(err, "bar is not part of the view")

	_, err = s.comp.Invoke(s.ctx, "app.Other", fooID, nil, nil)
	s.Error(err)
}

func (s *ComponentTestSuite) TestStateTransitions() {
	c, err := s.f.configure(s.d)
	s.Require().NoError(err)
	comp := NewBasic(c, nil)
	s.Equal(StateConstructed, comp.State())

	_, err = comp.CreateInstance(s.ctx)
	s.True(errors.HasCode(err, errors.IllegalStateErrorCode))

	s.Require().NoError(comp.Start(s.ctx))
	s.Equal(StateStarted, comp.State())
	s.True(errors.HasCode(comp.Start(s.ctx), errors.IllegalStateErrorCode))

	first, err := comp.CreateInstance(s.ctx)
	s.Require().NoError(err)
	second, err := comp.CreateInstance(s.ctx)
	s.Require().NoError(err)
	s.NotSame(first.Target(), second.Target())
	s.Len(comp.LiveInstances(), 2)

	comp.DestroyInstance(s.ctx, first)
	s.Equal([]*Instance{second}, comp.LiveInstances())

	s.Require().NoError(comp.Stop(s.ctx))
	s.Equal(StateStopped, comp.State())
	s.True(second.Destroyed())
	s.Empty(comp.LiveInstances())

	_, err = comp.CreateInstance(s.ctx)
	s.True(errors.HasCode(err, errors.IllegalStateErrorCode))
	s.NoError(comp.Stop(s.ctx))
}

func (s *ComponentTestSuite) TestLifecycleAwareSeesEverything() {
	lc := &countingLifecycle{}
	d := NewDescription("Greeter", greeterClass, s.f.module, unit)
	d.AddConfigurator(LifecycleAwareConfigurator{Interceptor: lc})
	d.AddConfigurator(InstantiateAndInjectConfigurator{})
	c, err := s.f.configure(d)
	s.Require().NoError(err)

	comp := NewBasic(c, nil)
	s.Require().NoError(comp.Start(s.ctx))
	inst, err := comp.CreateInstance(s.ctx)
	s.Require().NoError(err)
	_, err = inst.Invoke(s.ctx, fooID)
	s.Require().NoError(err)
	_, err = inst.Invoke(s.ctx, barID)
	s.Require().NoError(err)
	s.Require().NoError(comp.Stop(s.ctx))

	s.Equal(1, lc.constructed)
	s.Equal(1, lc.destroyed)
	s.Equal(2, lc.invocations)
}

func (s *ComponentTestSuite) TestStopDuringConstructionDestroysInstance() {
	lc := &gatedLifecycle{entered: make(chan struct{}), gate: make(chan struct{})}
	d := NewDescription("Greeter", greeterClass, s.f.module, unit)
	d.AddConfigurator(LifecycleAwareConfigurator{Interceptor: lc})
	d.AddConfigurator(InstantiateAndInjectConfigurator{})
	c, err := s.f.configure(d)
	s.Require().NoError(err)

	comp := NewBasic(c, nil)
	s.Require().NoError(comp.Start(s.ctx))

	type result struct {
		inst *Instance
		err  error
	}
	done := make(chan result, 1)
	go func() {
		inst, err := comp.CreateInstance(s.ctx)
		done <- result{inst: inst, err: err}
	}()

	<-lc.entered
	s.Require().NoError(comp.Stop(s.ctx))
	close(lc.gate)

	res := <-done
	s.Nil(res.inst)
	s.True(errors.HasCode(res.err, errors.IllegalStateErrorCode))
	s.Empty(comp.LiveInstances())
	s.Equal(1, lc.constructed)
	s.Equal(1, lc.destroyed, "the late instance is destroyed")
}

func (s *ComponentTestSuite) TestNamingContextConfigurator() {
	s.d.AddConfigurator(NamingContextConfigurator{})
	s.d.AddBinding(BindingConfiguration{Name: "greeting", Source: ImmediateSource{Value: "hi"}})
	s.d.AddBinding(BindingConfiguration{Name: "java:global/x", Source: ServiceSource{Service: "svc.x"}})
	s.d.AddDependency("svc.required", Required)

	c, err := s.f.configure(s.d)
	s.Require().NoError(err)

	names := make([]string, 0)
	for _, b := range c.Bindings() {
		names = append(names, b.Name)
	}
	s.Equal([]string{"java:comp/env/greeting", "java:global/x"}, names)
	s.Equal(unit.Append("module", "env"), c.EnvContextServiceName())

	container := service.NewContainer(logging.Discard())
	builder := container.AddService(s.d.ServiceName(), service.ValueService(nil))
	for _, dc := range c.StartDependencies() {
		dc(builder)
	}
	s.Require().NoError(builder.Install())
	err = container.Start(s.ctx)
	s.Error(err, "env context and services are not installed")
	s.True(errors.HasCode(err, errors.DependencyErrorCode))
}

func (s *ComponentTestSuite) TestFactoryOverride() {
	var built bool
	s.d.SetFactory(func(c *Configuration, env *Environment) (Component, error) {
		built = true
		return NewBasic(c, env), nil
	})
	c, err := s.f.configure(s.d)
	s.Require().NoError(err)

	comp, err := NewComponent(c, nil)
	s.Require().NoError(err)
	s.True(built)
	s.Equal("Greeter", comp.Name())
	s.Equal(greeterClass, comp.Class().Name)
}

func TestComponentSuite(t *testing.T) {
	suite.Run(t, new(ComponentTestSuite))
}
