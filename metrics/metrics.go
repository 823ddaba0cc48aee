/*
Package metrics exposes Prometheus instrumentation for the routine engine.

PURPOSE:

	Collector owns a private registry so tests and embedded servers never clash
	on the global one. It implements routine.Recorder for the accountant and
	offers an HTTP observation hook for the API middleware.

METRICS:

	routines_replay_duration_seconds{kind}      histogram
	routines_completions_applied_total{status}  counter
	routines_reconciliations_total              counter
	routines_gateway_errors_total{op}           counter
	routines_http_requests_total{method,route,code}
	routines_http_request_duration_seconds{route}

SEE ALSO:
  - routine/accountant.go: Recorder interface
  - api/server.go: /metrics endpoint and request middleware
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "routines"

// Collector holds every metric the engine emits.
type Collector struct {
	registry *prometheus.Registry

	replayDuration *prometheus.HistogramVec
	completions    *prometheus.CounterVec
	reconciled     prometheus.Counter
	gatewayErrors  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// Options configures New.
type Options struct {
	// RuntimeMetrics adds the Go and process collectors.
	RuntimeMetrics bool
}

// New creates a Collector registered on a fresh registry.
func New(opts Options) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		replayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_duration_seconds",
			Help:      "Time spent replaying a routine's completion history.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_applied_total",
			Help:      "Completion records applied, by status.",
		}, []string{"status"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Routines whose stored state was recomputed.",
		}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "History gateway failures, by operation.",
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(c.replayDuration, c.completions, c.reconciled, c.gatewayErrors, c.httpRequests, c.httpDuration)
	if opts.RuntimeMetrics {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// =============================================================================
// routine.Recorder
// =============================================================================

func (c *Collector) ObserveReplay(kind string, d time.Duration) {
	c.replayDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) CompletionApplied(status string) {
	c.completions.WithLabelValues(status).Inc()
}

func (c *Collector) Reconciled() { c.reconciled.Inc() }

func (c *Collector) GatewayError(op string) {
	c.gatewayErrors.WithLabelValues(op).Inc()
}

// =============================================================================
// HTTP
// =============================================================================

// ObserveHTTP records one served request. route is the chi route pattern,
// never the raw path.
func (c *Collector) ObserveHTTP(method, route string, code int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
