package metrics

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/pool"
	"github.com/toyz/eecore/pkg/ee/service"
)

const (
	unit       = service.Name("deployment.metrics")
	echoClass  = "app.Echo"
	echoView   = "app.EchoLocal"
	echoPooled = "Echo"
)

var (
	pingID  = classes.NewMethodIdentifier("string", "ping")
	failID  = classes.VoidMethod("fail")
	crashID = classes.VoidMethod("crash")
)

func startEcho(t *testing.T, c *Collector) ejb.Bean {
	t.Helper()
	class := classes.NewClass(echoClass, func() (any, error) { return new(struct{}), nil }).
		Declare(pingID, func(any, classes.Invocation) (any, error) { return "pong", nil }).
		Declare(failID, func(any, classes.Invocation) (any, error) { return nil, stderrors.New("nope") }).
		Declare(crashID, func(any, classes.Invocation) (any, error) {
			return nil, ejb.SystemFailure(stderrors.New("broken"))
		})
	view := classes.NewInterface(echoView).Declare(pingID, nil).Declare(failID, nil).Declare(crashID, nil)
	loader := classes.NewLoader("metrics", nil).MustDefine(class, view)
	module := component.NewModuleDescription("app", "metrics")

	d := ejb.Describe(ejb.KindStateless, echoPooled, echoClass, module, unit, ejb.Options{
		Pool:         ejb.PoolSettings{MaxSize: 2, Timeout: time.Second},
		Lifecycle:    c.Interceptor(echoPooled),
		PoolObserver: c,
	})
	ejb.AddView(d, echoView)

	pc := component.NewPhaseContext(context.Background(), unit, loader, logging.Discard())
	cfg, err := component.Configure(pc, d, component.NewModuleConfiguration(module, loader))
	require.NoError(t, err)
	comp, err := component.NewComponent(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, comp.Start(context.Background()))
	t.Cleanup(func() { _ = comp.Stop(context.Background()) })
	return comp.(ejb.Bean)
}

func TestNewCollectorRegistersMetrics(t *testing.T) {
	c := NewCollector("")
	c.ObservePool("p", pool.EventCreate, 0)
	c.RecordInvocation("c", "m", time.Millisecond, nil)
	c.ObserveDeployment("u", 1, 0, time.Millisecond)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "eecore_pool_events_total")
	assert.Contains(t, names, "eecore_component_invocations_total")
	assert.Contains(t, names, "eecore_deployment_total")
}

func TestRecordInvocationResults(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{name: "success", result: "ok"},
		{name: "business error", err: stderrors.New("declined"), result: "error"},
		{name: "system failure", err: ejb.SystemFailure(stderrors.New("lost")), result: "system_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector("test")
			c.RecordInvocation("Teller", "deposit", 2*time.Millisecond, tt.err)
			assert.Equal(t, 1.0, testutil.ToFloat64(c.invocations.WithLabelValues("Teller", "deposit", tt.result)))
		})
	}
}

func TestObserveDeployment(t *testing.T) {
	c := NewCollector("test")
	c.ObserveDeployment("deployment.bank", 5, 2, 30*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.deployments.WithLabelValues("partial")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.deployedComponents.WithLabelValues("deployment.bank", "running")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.deployedComponents.WithLabelValues("deployment.bank", "failed")))

	c.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(c.deployedComponents))
}

func TestComponentInstrumentation(t *testing.T) {
	c := NewCollector("test")
	bean := startEcho(t, c)
	ctx := context.Background()

	for range 3 {
		got, err := bean.Invoke(ctx, echoView, pingID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "pong", got)
	}
	_, err := bean.Invoke(ctx, echoView, failID, nil, nil)
	require.Error(t, err)
	_, err = bean.Invoke(ctx, echoView, crashID, nil, nil)
	require.Error(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.invocations.WithLabelValues(echoPooled, "ping", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invocations.WithLabelValues(echoPooled, "fail", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invocations.WithLabelValues(echoPooled, "crash", "system_failure")))

	assert.Equal(t, 5.0, testutil.ToFloat64(c.poolEvents.WithLabelValues(echoPooled, "get")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.poolEvents.WithLabelValues(echoPooled, "release")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.poolEvents.WithLabelValues(echoPooled, "discard")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.poolEvents.WithLabelValues(echoPooled, "create")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.liveInstances.WithLabelValues(echoPooled)),
		"both failed calls destroyed their instance")
}

func TestHandlerServesTextFormat(t *testing.T) {
	c := NewCollector("test")
	c.ObservePool("Echo", pool.EventTimeout, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `test_pool_events_total{event="timeout",pool="Echo"} 1`), body)
	assert.Contains(t, body, "test_pool_wait_duration_seconds_count")
}
