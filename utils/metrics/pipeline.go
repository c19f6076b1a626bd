// Package metrics exposes Prometheus instruments for the syllabus pipeline and chat routing.
// All methods are safe on a nil *PipelineMetrics so collaborators can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PipelineMetrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	outcomeTotal  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	intentTotal   *prometheus.CounterVec
	droppedEvents prometheus.Counter
}

func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "syllabus",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline phase.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"phase"},
	)
	outcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syllabus",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished pipeline runs by outcome and error kind.",
		},
		[]string{"outcome", "error_kind"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syllabus",
			Subsystem: "pipeline",
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups by result.",
		},
		[]string{"result"},
	)
	intentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syllabus",
			Subsystem: "chat",
			Name:      "intents_total",
			Help:      "Classified chat intents; fallback=true when the default intent was substituted.",
		},
		[]string{"intent", "fallback"},
	)
	droppedEvents := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "syllabus",
			Subsystem: "pipeline",
			Name:      "dropped_events_total",
			Help:      "Extracted events dropped for a missing title or due date.",
		},
	)

	registry.MustRegister(
		stageDuration, outcomeTotal, cacheLookups, intentTotal, droppedEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PipelineMetrics{
		registry:      registry,
		stageDuration: stageDuration,
		outcomeTotal:  outcomeTotal,
		cacheLookups:  cacheLookups,
		intentTotal:   intentTotal,
		droppedEvents: droppedEvents,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *PipelineMetrics) ObservePhase(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// RecordOutcome counts a finished run; errorKind is empty on success
func (m *PipelineMetrics) RecordOutcome(succeeded bool, errorKind string) {
	if m == nil {
		return
	}
	outcome := "succeeded"
	if !succeeded {
		outcome = "failed"
	}
	m.outcomeTotal.WithLabelValues(outcome, errorKind).Inc()
}

func (m *PipelineMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) RecordDroppedEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedEvents.Add(float64(n))
}

func (m *PipelineMetrics) RecordIntent(intent string, fallback bool) {
	if m == nil {
		return
	}
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.intentTotal.WithLabelValues(intent, fb).Inc()
}
