// Package metrics exposes Prometheus metrics for the audio card service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the service.
// Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	// Job metrics
	JobsSubmitted *prometheus.CounterVec
	JobsFinished  *prometheus.CounterVec
	JobsRunning   prometheus.Gauge
	JobDuration   *prometheus.HistogramVec

	// Audio metrics
	ChunksProduced prometheus.Counter
	ArtifactSize   *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a fresh registry that also carries the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		JobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocards_jobs_submitted_total",
			Help: "Total number of jobs accepted",
		}, []string{"kind"}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocards_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal state",
		}, []string{"kind", "status"}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audiocards_jobs_running",
			Help: "Current number of jobs being processed",
		}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiocards_job_duration_seconds",
			Help:    "Wall time from job start to completion",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3 minutes
		}, []string{"kind"}),

		ChunksProduced: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiocards_chunks_produced_total",
			Help: "Total number of phrase chunks cut from recordings",
		}),
		ArtifactSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiocards_artifact_size_bytes",
			Help:    "Size of job output files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
		}, []string{"kind"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocards_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiocards_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordJobSubmitted increments the submitted counter for kind.
func (m *Metrics) RecordJobSubmitted(kind string) {
	m.JobsSubmitted.WithLabelValues(kind).Inc()
}

// RecordJobStarted increments the running gauge.
func (m *Metrics) RecordJobStarted() {
	m.JobsRunning.Inc()
}

// RecordJobFinished decrements the running gauge and records the outcome.
func (m *Metrics) RecordJobFinished(kind, status string, durationSeconds float64) {
	m.JobsRunning.Dec()
	m.JobsFinished.WithLabelValues(kind, status).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordChunks adds n produced chunks.
func (m *Metrics) RecordChunks(n int) {
	m.ChunksProduced.Add(float64(n))
}

// RecordArtifact records the size of a job's output.
func (m *Metrics) RecordArtifact(kind string, sizeBytes int64) {
	m.ArtifactSize.WithLabelValues(kind).Observe(float64(sizeBytes))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
