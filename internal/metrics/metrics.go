// Package metrics exposes jellywatch's Prometheus collectors.
//
// Collectors live on a private registry owned by Metrics so several daemons
// (or tests) can coexist in one process. Every method is safe on a nil
// receiver, letting callers treat metrics as optional.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jellywatch"

// Job run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
	OutcomePanic   = "panic"
	OutcomeReject  = "rejected"
)

// Metrics bundles the collectors and the registry that serves them.
type Metrics struct {
	registry *prometheus.Registry

	JobRuns            *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	ScheduledJobs      prometheus.Gauge
	JellyfinRequests   *prometheus.CounterVec
	JellyfinDuration   *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job id and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"job"}),
		ScheduledJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_jobs",
			Help:      "Number of jobs currently in the scheduler table.",
		}),
		JellyfinRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jellyfin_requests_total",
			Help:      "Outbound Jellyfin requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		JellyfinDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "jellyfin_request_duration_seconds",
			Help:      "Outbound Jellyfin request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"name", "from", "to"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JobRuns,
		m.JobDuration,
		m.ScheduledJobs,
		m.JellyfinRequests,
		m.JellyfinDuration,
		m.BreakerState,
		m.BreakerTransitions,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// SetScheduledJobs records the size of the job table.
func (m *Metrics) SetScheduledJobs(n int) {
	if m == nil {
		return
	}
	m.ScheduledJobs.Set(float64(n))
}

// ObserveJellyfinRequest records one outbound request.
func (m *Metrics) ObserveJellyfinRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JellyfinRequests.WithLabelValues(endpoint, outcome).Inc()
	m.JellyfinDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// BreakerTransition records a circuit breaker state change. States are the
// gobreaker names: closed, half-open, open.
func (m *Metrics) BreakerTransition(name, from, to string) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	m.BreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
