package merge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/eecore/internal/descriptor"
	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/internal/scanner"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/deployment"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/service"
)

func annotatedBank() *metadata.ModuleMetadata {
	return &metadata.ModuleMetadata{
		Application: "bank",
		Module:      "core",
		Components: []*metadata.ComponentMetadata{
			metadata.NewComponentBuilder(metadata.KindStateless, "Counter", "bank.Counter").
				WithViews("bank.CounterLocal").
				WithInterceptors("audit.Logger").
				WithMethodInterceptors(metadata.MethodInterceptors{Method: "Add", Interceptors: []string{"audit.Trace"}}).
				WithLocalRef(metadata.LocalRef{Name: "ejb/ledger", Type: "bank.LedgerLocal", Link: "Ledger"}).
				At(metadata.FromAnnotation, "counter.go", 12).
				Build(),
		},
	}
}

func TestMergeOverlaysDescriptor(t *testing.T) {
	annotated := annotatedBank()
	desc := &metadata.ModuleMetadata{
		Module:              "core-prod",
		DefaultInterceptors: []string{"audit.Default"},
		Components: []*metadata.ComponentMetadata{
			{
				Name:             "Counter",
				Views:            []string{"bank.CounterLocal", "bank.CounterAdmin"},
				Naming:           metadata.NamingComponent,
				LifecycleTrait:   metadata.LifecycleTrait{PreDestroy: "Close"},
				InterceptorTrait: metadata.InterceptorTrait{Interceptors: []string{"audit.Timer"}, MethodInterceptors: []metadata.MethodInterceptors{{Method: "Add", Interceptors: []string{"audit.Fast"}, ExcludeClass: true}}},
				Pool:             &metadata.PoolTrait{MaxSize: 2},
				LocalRefs:        []metadata.LocalRef{{Name: "ejb/ledger", Type: "bank.LedgerLocal", Lookup: "java:global/ledger"}},
				Origin:           metadata.FromDescriptor,
			},
			{Name: "Ledger", ClassName: "bank.Ledger", Kind: metadata.KindSingleton, Startup: true, Origin: metadata.FromDescriptor},
		},
	}

	merged, err := Merge(annotated, desc)
	require.NoError(t, err)

	assert.Equal(t, "bank", merged.Application)
	assert.Equal(t, "core-prod", merged.Module)
	assert.Equal(t, []string{"audit.Default"}, merged.DefaultInterceptors)
	require.Len(t, merged.Components, 2)

	counter, _ := merged.Component("Counter")
	assert.Equal(t, "bank.Counter", counter.ClassName)
	assert.Equal(t, []string{"bank.CounterLocal", "bank.CounterAdmin"}, counter.Views)
	assert.Equal(t, metadata.NamingComponent, counter.Naming)
	assert.Equal(t, "Close", counter.PreDestroy)
	assert.Equal(t, []string{"audit.Timer"}, counter.Interceptors)
	assert.Equal(t, []metadata.MethodInterceptors{{Method: "Add", Interceptors: []string{"audit.Fast"}, ExcludeClass: true}}, counter.MethodInterceptors)
	assert.Equal(t, &metadata.PoolTrait{MaxSize: 2}, counter.Pool)
	assert.Equal(t, []metadata.LocalRef{{Name: "ejb/ledger", Type: "bank.LedgerLocal", Lookup: "java:global/ledger"}}, counter.LocalRefs)
	assert.Equal(t, metadata.FromAnnotation, counter.Origin)

	ledger, ok := merged.Component("Ledger")
	require.True(t, ok)
	assert.True(t, ledger.Startup)

	// inputs are left alone
	original, _ := annotated.Component("Counter")
	assert.Equal(t, []string{"audit.Logger"}, original.Interceptors)
	assert.Nil(t, original.Pool)
	assert.Equal(t, "Ledger", original.LocalRefs[0].Link)
}

func TestMergeNilSides(t *testing.T) {
	merged, err := Merge(annotatedBank(), nil)
	require.NoError(t, err)
	assert.Len(t, merged.Components, 1)

	merged, err = Merge(nil, annotatedBank())
	require.NoError(t, err)
	assert.Equal(t, "core", merged.Module)

	merged, err = Merge(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, merged.Components)
}

func TestMergeClasses(t *testing.T) {
	annotated := &metadata.ModuleMetadata{Classes: []*metadata.ClassMetadata{{
		ClassName:      "audit.Logger",
		LifecycleTrait: metadata.LifecycleTrait{AroundInvoke: "Invoke"},
		Injections:     []metadata.Injection{{Field: "Sink", Lookup: "java:comp/env/sink"}},
	}}}
	desc := &metadata.ModuleMetadata{Classes: []*metadata.ClassMetadata{
		{
			ClassName:      "audit.Logger",
			LifecycleTrait: metadata.LifecycleTrait{PostConstruct: "Open"},
			Injections:     []metadata.Injection{{Field: "Sink", Lookup: "java:global/sink"}, {Field: "Clock", Lookup: "clock"}},
		},
		{ClassName: "audit.Timer", LifecycleTrait: metadata.LifecycleTrait{AroundInvoke: "Time"}},
	}}

	merged, err := Merge(annotated, desc)
	require.NoError(t, err)
	require.Len(t, merged.Classes, 2)

	logger, _ := merged.Class("audit.Logger")
	assert.Equal(t, "Invoke", logger.AroundInvoke)
	assert.Equal(t, "Open", logger.PostConstruct)
	assert.Equal(t, []metadata.Injection{
		{Field: "Sink", Lookup: "java:global/sink"},
		{Field: "Clock", Lookup: "clock"},
	}, logger.Injections)
	assert.Equal(t, []metadata.Injection{{Field: "Sink", Lookup: "java:comp/env/sink"}}, annotated.Classes[0].Injections)
}

func TestMergeErrors(t *testing.T) {
	tests := []struct {
		name     string
		desc     *metadata.ModuleMetadata
		contains string
	}{
		{
			name: "kind conflict",
			desc: &metadata.ModuleMetadata{Components: []*metadata.ComponentMetadata{
				{Name: "Counter", Kind: metadata.KindSingleton, Location: metadata.Location{File: "ee.yaml"}},
			}},
			contains: "descriptor declares Counter as singleton but it is annotated stateless at counter.go:12",
		},
		{
			name: "new component without class",
			desc: &metadata.ModuleMetadata{Components: []*metadata.ComponentMetadata{
				{Name: "Ledger", Kind: metadata.KindStateless},
			}},
			contains: "component Ledger has no class",
		},
		{
			name: "new component without kind",
			desc: &metadata.ModuleMetadata{Components: []*metadata.ComponentMetadata{
				{Name: "Ledger", ClassName: "bank.Ledger"},
			}},
			contains: "component Ledger has no kind",
		},
		{
			name: "startup added to a stateless component",
			desc: &metadata.ModuleMetadata{Components: []*metadata.ComponentMetadata{
				{Name: "Counter", Startup: true},
			}},
			contains: "init-on-startup needs a singleton, got stateless",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge(annotatedBank(), tt.desc)
			require.Error(t, err)
			assert.Nil(t, merged)
			assert.True(t, errors.HasCode(err, errors.ValidationErrorCode))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

var (
	addID        = classes.NewMethodIdentifier("int", "Add", "int")
	addManyID    = classes.NewMethodIdentifier("int", "Add", "int", "int")
	getID        = classes.NewMethodIdentifier("int", "Get")
	initID       = classes.VoidMethod("Init")
	invokeID     = classes.NewMethodIdentifier("any", "Invoke")
	afterBeginID = classes.VoidMethod("Begin")
)

type counter struct {
	mu     sync.Mutex
	n      int
	inited bool
	Ledger any
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func bankLoader(rec *recorder) *classes.Loader {
	counterC := classes.NewClass("bank.Counter", func() (any, error) { return &counter{}, nil }).
		Declare(addID, func(target any, inv classes.Invocation) (any, error) {
			c := target.(*counter)
			c.mu.Lock()
			defer c.mu.Unlock()
			c.n += inv.Parameters()[0].(int)
			return c.n, nil
		}).
		Declare(getID, func(target any, _ classes.Invocation) (any, error) {
			c := target.(*counter)
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.n, nil
		}).
		DeclarePrivate(initID, func(target any, _ classes.Invocation) (any, error) {
			target.(*counter).inited = true
			rec.add("init")
			return nil, nil
		}).
		DeclareField("Ledger", func(target, v any) error {
			target.(*counter).Ledger = v
			return nil
		})
	overloaded := classes.NewClass("bank.Overloaded", func() (any, error) { return &counter{}, nil }).
		Declare(addID, nil).
		Declare(addManyID, nil)
	cart := classes.NewClass("bank.Cart", func() (any, error) { return &counter{}, nil }).
		Declare(afterBeginID, nil)
	logger := classes.NewClass("audit.Logger", func() (any, error) { return &struct{}{}, nil }).
		DeclarePrivate(invokeID, func(_ any, inv classes.Invocation) (any, error) {
			rec.add("logger")
			return inv.Proceed()
		})

	return classes.NewLoader("bank", nil).MustDefine(counterC, overloaded, cart, logger,
		classes.NewInterface("bank.CounterLocal").Declare(addID, nil).Declare(getID, nil),
	)
}

func TestBuildUnit(t *testing.T) {
	md := &metadata.ModuleMetadata{
		Application:         "bank",
		Module:              "core",
		DefaultInterceptors: []string{"audit.Logger"},
		Classes: []*metadata.ClassMetadata{
			{ClassName: "audit.Logger", LifecycleTrait: metadata.LifecycleTrait{AroundInvoke: "Invoke"}},
		},
		Components: []*metadata.ComponentMetadata{
			metadata.NewComponentBuilder(metadata.KindStateless, "Counter", "bank.Counter").
				WithViews("bank.CounterLocal").
				WithLifecycle("Init", "").
				WithNaming(metadata.NamingComponent).
				WithMethodInterceptors(metadata.MethodInterceptors{Method: "Add", ExcludeDefault: true}).
				WithPool(metadata.PoolTrait{Timeout: "2s"}).
				WithLocalRef(metadata.LocalRef{Name: "ejb/ledger", Type: "bank.CounterLocal", Link: "Counter", Field: "Ledger"}).
				Build(),
			metadata.NewComponentBuilder(metadata.KindStateful, "Cart", "bank.Cart").
				WithSynchronization(metadata.SynchronizationTrait{AfterBegin: "Begin"}).
				Build(),
		},
	}

	base := ejb.Options{Pool: ejb.PoolSettings{MaxSize: 7, Timeout: time.Second}}
	unit, err := BuildUnit(md, bankLoader(&recorder{}), base)
	require.NoError(t, err)
	require.Len(t, unit.Components, 2)

	d := unit.Components[0]
	assert.Equal(t, "Counter", d.Name())
	assert.Equal(t, ejb.KindStateless, ejb.KindOf(d))
	assert.Equal(t, ejb.PoolSettings{MaxSize: 7, Timeout: 2 * time.Second}, ejb.OptionsOf(d).Pool)
	assert.Equal(t, component.UseComponent, d.NamingMode())
	require.Len(t, d.Views(), 1)
	assert.Equal(t, "bank.CounterLocal", d.Views()[0].ClassName)
	assert.Equal(t, []component.InterceptorDescription{{ClassName: "audit.Logger"}}, d.DefaultInterceptors())
	assert.True(t, d.IsExcludeDefaultInterceptorsFor(addID))
	assert.False(t, d.IsExcludeDefaultInterceptorsFor(getID))

	cd, ok := unit.Module.Class("bank.Counter")
	require.True(t, ok)
	require.NotNil(t, cd.PostConstruct)
	assert.Equal(t, initID, *cd.PostConstruct)
	require.Len(t, cd.Injections, 1)
	assert.Equal(t, "Ledger", cd.Injections[0].Target.Field)
	assert.Equal(t, component.LookupSource{Name: "java:comp/env/ejb/ledger"}, cd.Injections[0].Source)
	assert.Equal(t, []deployment.EJBLocalRef{{Name: "ejb/ledger", Type: "bank.CounterLocal", Link: "Counter"}}, unit.LocalRefs["Counter"])

	logger, ok := unit.Module.Class("audit.Logger")
	require.True(t, ok)
	assert.Equal(t, invokeID, *logger.AroundInvoke)

	cart := unit.Components[1]
	assert.Equal(t, ejb.KindStateful, ejb.KindOf(cart))
	callbacks := ejb.OptionsOf(cart).Synchronization
	require.NotNil(t, callbacks)
	assert.Equal(t, afterBeginID, *callbacks.AfterBegin)
	assert.Nil(t, callbacks.AfterCompletion)
}

func TestBuildUnitPassThroughPool(t *testing.T) {
	md := &metadata.ModuleMetadata{Module: "core", Components: []*metadata.ComponentMetadata{
		metadata.NewComponentBuilder(metadata.KindStateless, "Counter", "bank.Counter").
			WithPool(metadata.PoolTrait{PassThrough: true}).Build(),
	}}
	unit, err := BuildUnit(md, bankLoader(&recorder{}), ejb.Options{Pool: ejb.PoolSettings{MaxSize: 3}})
	require.NoError(t, err)
	assert.Equal(t, ejb.PoolSettings{PassThrough: true}, ejb.OptionsOf(unit.Components[0]).Pool)
}

func TestBuildUnitErrors(t *testing.T) {
	tests := []struct {
		name      string
		component *metadata.ComponentMetadata
		contains  string
		code      errors.ErrorCode
	}{
		{
			name:      "unknown class",
			component: metadata.NewComponentBuilder(metadata.KindManaged, "Ghost", "bank.Ghost").Build(),
			contains:  "bank.Ghost",
			code:      errors.ClassNotFoundErrorCode,
		},
		{
			name:      "unknown callback",
			component: metadata.NewComponentBuilder(metadata.KindManaged, "C", "bank.Counter").WithLifecycle("Start", "").Build(),
			contains:  "class bank.Counter has no method Start",
			code:      errors.DeploymentErrorCode,
		},
		{
			name: "ambiguous method",
			component: metadata.NewComponentBuilder(metadata.KindStateless, "O", "bank.Overloaded").
				WithMethodInterceptors(metadata.MethodInterceptors{Method: "Add", Interceptors: []string{"audit.Logger"}}).Build(),
			contains: "method name Add is ambiguous on class bank.Overloaded",
			code:     errors.DeploymentErrorCode,
		},
		{
			name: "unknown full identifier",
			component: metadata.NewComponentBuilder(metadata.KindStateless, "C", "bank.Counter").
				WithMethodInterceptors(metadata.MethodInterceptors{Method: "int Missing()"}).Build(),
			contains: "method int Missing() not found on class bank.Counter",
			code:     errors.DeploymentErrorCode,
		},
		{
			name:      "unknown kind",
			component: &metadata.ComponentMetadata{Name: "C", ClassName: "bank.Counter", Kind: "entity"},
			contains:  `unknown component kind "entity"`,
			code:      errors.DeploymentErrorCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := &metadata.ModuleMetadata{Module: "core", Components: []*metadata.ComponentMetadata{
				tt.component,
				metadata.NewComponentBuilder(metadata.KindManaged, "Fine", "bank.Counter").Build(),
			}}
			unit, err := BuildUnit(md, bankLoader(&recorder{}), ejb.Options{})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code))
			assert.Contains(t, err.Error(), tt.contains)

			// the healthy sibling is still described
			require.NotNil(t, unit)
			require.Len(t, unit.Components, 1)
			assert.Equal(t, "Fine", unit.Components[0].Name())
		})
	}
}

func TestBuildUnitNeedsModule(t *testing.T) {
	_, err := BuildUnit(&metadata.ModuleMetadata{}, bankLoader(&recorder{}), ejb.Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ConfigurationErrorCode))
}

const counterSource = `package bank

//ee::stateless Counter -Views=bank.CounterLocal -MaxSize=2
//ee::interceptors audit.Logger
type Counter struct{}

//ee::postconstruct
func (c *Counter) Init() {}
`

const auditSource = `package audit

type Logger struct{}

//ee::aroundinvoke
func (l *Logger) Invoke() {}
`

const overrideDescriptor = `
application: bank
module: core
components:
  - name: Counter
    pool: {max-size: 1, timeout: 50ms}
`

func TestScannedMetadataDeploys(t *testing.T) {
	s := scanner.New(nil)
	annotated := &metadata.ModuleMetadata{}
	for name, src := range map[string]string{"counter.go": counterSource, "audit.go": auditSource} {
		pkg, err := s.ScanSource(name, src)
		require.NoError(t, err)
		annotated.AddPackage(pkg)
	}
	desc, err := descriptor.Parse([]byte(overrideDescriptor), "ee.yaml")
	require.NoError(t, err)

	merged, err := Merge(annotated, desc)
	require.NoError(t, err)

	rec := &recorder{}
	unit, err := BuildUnit(merged, bankLoader(rec), ejb.Options{})
	require.NoError(t, err)
	assert.Equal(t, ejb.PoolSettings{MaxSize: 1, Timeout: 50 * time.Millisecond}, ejb.OptionsOf(unit.Components[0]).Pool)

	ctx := context.Background()
	deployer := deployment.NewDeployer(service.NewContainer(logging.Discard()), deployment.WithLogger(logging.Discard()))
	dep, err := deployer.Deploy(ctx, unit)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, deployer.Shutdown(ctx)) })

	c, ok := dep.Component("Counter")
	require.True(t, ok)
	got, err := c.Invoke(ctx, "bank.CounterLocal", addID, []any{5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	got, err = c.Invoke(ctx, "bank.CounterLocal", getID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, []string{"init", "logger", "logger"}, rec.list())
}
