// Package metrics exposes pipeline counters and timings to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gazettes"

// Pipeline records per-stage durations, final outcomes and in-flight work.
type Pipeline struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
	inFlight      prometheus.Gauge
	jobs          *prometheus.CounterVec
	cleanupErrors prometheus.Counter
}

// NewPipeline registers the collectors on a private registry.
func NewPipeline() *Pipeline {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds by stage and result.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "result"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents processed by final state.",
		},
		[]string{"jurisdiction", "final"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "documents_in_flight",
			Help:      "Documents currently being processed.",
		},
	)
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "received_total",
			Help:      "Queue jobs received by decode status.",
		},
		[]string{"status"},
	)
	cleanupErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cleanup_errors_total",
			Help:      "Staged copies that could not be deleted.",
		},
	)

	registry.MustRegister(stageDuration, outcomes, inFlight, jobs, cleanupErrors)

	return &Pipeline{
		registry:      registry,
		stageDuration: stageDuration,
		outcomes:      outcomes,
		inFlight:      inFlight,
		jobs:          jobs,
		cleanupErrors: cleanupErrors,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Pipeline) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Pipeline) ObserveStage(stage string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stageDuration.WithLabelValues(stage, result).Observe(duration.Seconds())
}

func (m *Pipeline) StartDocument() {
	m.inFlight.Inc()
}

func (m *Pipeline) FinishDocument(jurisdiction, final string) {
	m.inFlight.Dec()
	m.outcomes.WithLabelValues(jurisdiction, final).Inc()
}

func (m *Pipeline) CleanupFailed(n int) {
	if n > 0 {
		m.cleanupErrors.Add(float64(n))
	}
}

func (m *Pipeline) JobReceived(ok bool) {
	status := "ok"
	if !ok {
		status = "invalid"
	}
	m.jobs.WithLabelValues(status).Inc()
}
