// Package metrics exposes Prometheus counters for the reannotation
// workflow on a dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the workflow counters. All increment methods are
// nil-safe so services can run without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	roundsCreated  prometheus.Counter
	tasksCreated   prometheus.Counter
	tasksSubmitted prometheus.Counter
	tasksSkipped   prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		roundsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concord_rounds_created_total",
			Help: "Reannotation rounds created",
		}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concord_tasks_created_total",
			Help: "Reannotation tasks created",
		}),
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concord_tasks_submitted_total",
			Help: "Tasks submitted with a new annotation version",
		}),
		tasksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concord_tasks_skipped_total",
			Help: "Tasks skipped without a new annotation version",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concord_score_cache_hits_total",
			Help: "Score cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concord_score_cache_misses_total",
			Help: "Score cache misses",
		}),
	}
	m.registry.MustRegister(
		m.roundsCreated,
		m.tasksCreated,
		m.tasksSubmitted,
		m.tasksSkipped,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RoundCreated() {
	if m != nil {
		m.roundsCreated.Inc()
	}
}

func (m *Metrics) TasksCreated(n int) {
	if m != nil {
		m.tasksCreated.Add(float64(n))
	}
}

func (m *Metrics) TaskSubmitted() {
	if m != nil {
		m.tasksSubmitted.Inc()
	}
}

func (m *Metrics) TaskSkipped() {
	if m != nil {
		m.tasksSkipped.Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}
