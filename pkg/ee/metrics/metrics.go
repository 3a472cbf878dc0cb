// Package metrics collects Prometheus metrics for deployments, instance pools
// and component invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toyz/eecore/pkg/ee/deployment"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/pool"
)

// Collector owns a registry with the container metrics. It observes pools and
// deployments and hands out interceptors that time invocations.
type Collector struct {
	registry *prometheus.Registry

	// Pool metrics
	poolEvents *prometheus.CounterVec
	poolWait   *prometheus.HistogramVec

	// Deployment metrics
	deployments        *prometheus.CounterVec
	deployLatency      prometheus.Histogram
	deployedComponents *prometheus.GaugeVec

	// Invocation metrics
	invocations       *prometheus.CounterVec
	invocationLatency *prometheus.HistogramVec
	liveInstances     *prometheus.GaugeVec
}

// NewCollector creates a collector; namespace defaults to "eecore"
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "eecore"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.poolEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "events_total",
			Help:      "Pool events by kind (get, release, create, destroy, discard, timeout)",
		},
		[]string{"pool", "event"},
	)

	c.poolWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for a pooled instance",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		},
		[]string{"pool"},
	)

	c.deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "total",
			Help:      "Deployments by result (ok, partial)",
		},
		[]string{"result"},
	)

	c.deployLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "duration_seconds",
			Help:      "Time taken to deploy a unit",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	c.deployedComponents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "components",
			Help:      "Components of the last deployment of a unit by state (running, failed)",
		},
		[]string{"unit", "state"},
	)

	c.invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "invocations_total",
			Help:      "Component method invocations by result (ok, error, system_failure)",
		},
		[]string{"component", "method", "result"},
	)

	c.invocationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "invocation_duration_seconds",
			Help:      "Time taken by component method invocations",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"component", "method"},
	)

	c.liveInstances = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "instances",
			Help:      "Constructed and not yet destroyed component instances",
		},
		[]string{"component"},
	)

	c.registry.MustRegister(
		c.poolEvents,
		c.poolWait,
		c.deployments,
		c.deployLatency,
		c.deployedComponents,
		c.invocations,
		c.invocationLatency,
		c.liveInstances,
	)
	return c
}

// Registry returns the registry holding the collector metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObservePool implements pool.Observer
func (c *Collector) ObservePool(name string, event pool.Event, wait time.Duration) {
	c.poolEvents.WithLabelValues(name, event.String()).Inc()
	if event == pool.EventGet || event == pool.EventTimeout {
		c.poolWait.WithLabelValues(name).Observe(wait.Seconds())
	}
}

// ObserveDeployment implements deployment.Observer
func (c *Collector) ObserveDeployment(unit string, components, failed int, took time.Duration) {
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	c.deployments.WithLabelValues(result).Inc()
	c.deployLatency.Observe(took.Seconds())
	c.deployedComponents.WithLabelValues(unit, "running").Set(float64(components - failed))
	c.deployedComponents.WithLabelValues(unit, "failed").Set(float64(failed))
}

// RecordInvocation records one finished invocation of method on component
func (c *Collector) RecordInvocation(component, method string, duration time.Duration, err error) {
	result := "ok"
	switch {
	case ejb.IsSystemFailure(err):
		result = "system_failure"
	case err != nil:
		result = "error"
	}
	c.invocations.WithLabelValues(component, method, result).Inc()
	c.invocationLatency.WithLabelValues(component, method).Observe(duration.Seconds())
}

// Interceptor returns a lifecycle-aware interceptor recording invocations and
// instance counts for the named component. Install it through ejb.Options.Lifecycle.
func (c *Collector) Interceptor(component string) interceptor.LifecycleAware {
	return &invocationInterceptor{collector: c, component: component}
}

// Reset clears every recorded value
func (c *Collector) Reset() {
	c.poolEvents.Reset()
	c.poolWait.Reset()
	c.deployments.Reset()
	c.deployedComponents.Reset()
	c.invocations.Reset()
	c.invocationLatency.Reset()
	c.liveInstances.Reset()
}

type invocationInterceptor struct {
	collector *Collector
	component string
}

func (i *invocationInterceptor) Process(ctx *interceptor.Context) (any, error) {
	method := "unknown"
	if m := ctx.Method(); m != nil {
		method = m.Name()
	}
	began := time.Now()
	v, err := ctx.Proceed()
	i.collector.RecordInvocation(i.component, method, time.Since(began), err)
	return v, err
}

func (i *invocationInterceptor) PostConstruct(ctx *interceptor.Context) (any, error) {
	v, err := ctx.Proceed()
	if err == nil {
		i.collector.liveInstances.WithLabelValues(i.component).Inc()
	}
	return v, err
}

func (i *invocationInterceptor) PreDestroy(ctx *interceptor.Context) (any, error) {
	i.collector.liveInstances.WithLabelValues(i.component).Dec()
	return ctx.Proceed()
}

var (
	_ pool.Observer              = (*Collector)(nil)
	_ deployment.Observer        = (*Collector)(nil)
	_ interceptor.LifecycleAware = (*invocationInterceptor)(nil)
)
