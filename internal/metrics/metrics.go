// Package metrics provides Prometheus metrics for moodlens jobs and the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moodlens"

// Recorder holds the service metrics on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	classified    *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	writeErrors   *prometheus.CounterVec
	aiOutcomes    *prometheus.CounterVec
	catalogBatch  prometheus.Histogram
	catalogMisses prometheus.Counter
	jobDuration   *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)
	return &Recorder{
		registry: reg,
		classified: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_classified_total",
			Help:      "Classifications written, by method and category",
		}, []string{"method", "category"}),
		skipped: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Events skipped by batch jobs, by job",
		}, []string{"job"}),
		writeErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Persistence failures after retries, by job",
		}, []string{"job"}),
		aiOutcomes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_suggestions_total",
			Help:      "External suggestion outcomes: deterministic, external, overridden, timeout, unavailable",
		}, []string{"outcome"}),
		catalogBatch: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_batch_seconds",
			Help:      "Latency of catalog descriptor batches",
			Buckets:   prometheus.DefBuckets,
		}),
		catalogMisses: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_missing_total",
			Help:      "Track IDs the catalog returned no descriptor for",
		}),
		jobDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Batch job duration, by job",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status",
		}, []string{"route", "status"}),
	}
}

// Classified counts one written classification.
func (r *Recorder) Classified(method, category string) {
	if r == nil {
		return
	}
	r.classified.WithLabelValues(method, category).Inc()
}

// Skipped counts n skipped events for a job.
func (r *Recorder) Skipped(job string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.skipped.WithLabelValues(job).Add(float64(n))
}

// WriteError counts a failed write.
func (r *Recorder) WriteError(job string) {
	if r == nil {
		return
	}
	r.writeErrors.WithLabelValues(job).Inc()
}

// AIOutcome counts one suggestion outcome.
func (r *Recorder) AIOutcome(outcome string) {
	if r == nil {
		return
	}
	r.aiOutcomes.WithLabelValues(outcome).Inc()
}

// CatalogBatch observes one catalog batch and the IDs it did not return.
func (r *Recorder) CatalogBatch(d time.Duration, missing int) {
	if r == nil {
		return
	}
	r.catalogBatch.Observe(d.Seconds())
	if missing > 0 {
		r.catalogMisses.Add(float64(missing))
	}
}

// JobDuration observes a finished batch job.
func (r *Recorder) JobDuration(job string, d time.Duration) {
	if r == nil {
		return
	}
	r.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// HTTPRequest counts a served request.
func (r *Recorder) HTTPRequest(route, status string) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, status).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
