// Package metrics exposes mnemo's Prometheus instrumentation: a
// request counter and latency histogram for the REST surface, plus
// counters for the background lifecycle passes. Grounded on
// github.com/prometheus/client_golang, a teacher dependency never
// wired into any handler in the teacher itself — mnemo's REST package
// is the first concrete consumer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder bundles every metric mnemo's HTTP and lifecycle layers emit.
type Recorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lifecycleRuns   *prometheus.CounterVec
	decayedTotal    prometheus.Counter
	archivedTotal   prometheus.Counter
	forgottenTotal  prometheus.Counter
}

// New registers mnemo's metrics against a dedicated registry and
// returns a Recorder wrapping it. A dedicated registry (rather than
// the global default) keeps repeated construction in tests from
// panicking on duplicate registration.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		requestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path, and status class.",
		}, []string{"method", "path", "status"}),
		requestDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mnemo",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		lifecycleRuns: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "lifecycle_runs_total",
			Help:      "Total lifecycle pass invocations by pass name and outcome.",
		}, []string{"pass", "outcome"}),
		decayedTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "lifecycle_memories_decayed_total",
			Help:      "Total memories transitioned by a decay pass (archived or forgotten).",
		}),
		archivedTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "lifecycle_memories_archived_total",
			Help:      "Total memories archived by a decay pass.",
		}),
		forgottenTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "lifecycle_memories_forgotten_total",
			Help:      "Total memories forgotten by a decay pass.",
		}),
	}
	return r
}

// Handler returns the HTTP handler that serves /metrics in the
// Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records a request count and latency observation for
// every request the router serves.
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		c.Next()
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"
		r.requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		r.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordDecayPass folds a decay pass's outcome into the lifecycle
// counters (spec §4.9).
func (r *Recorder) RecordDecayPass(forgotten, archived int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.lifecycleRuns.WithLabelValues("decay", outcome).Inc()
	r.forgottenTotal.Add(float64(forgotten))
	r.archivedTotal.Add(float64(archived))
	r.decayedTotal.Add(float64(forgotten + archived))
}

// RecordConsolidationPass folds a consolidation pass's outcome into
// the lifecycle counters.
func (r *Recorder) RecordConsolidationPass(clustersCreated int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.lifecycleRuns.WithLabelValues("consolidation", outcome).Inc()
	_ = clustersCreated
}
