// Package metrics exposes prometheus metrics for tagwatch runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every tagwatch metric on a dedicated prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	ChangesTotal     *prometheus.CounterVec
	ImpactsTotal     *prometheus.CounterVec
	AnnotationsTotal *prometheus.CounterVec

	AnalysisDuration   prometheus.Histogram
	GraphBuildDuration prometheus.Histogram

	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge
}

// NewRegistry creates the registry and registers every metric.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagwatch_runs_total",
			Help: "Container analysis runs by outcome",
		},
		[]string{"status"},
	)
	r.ChangesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagwatch_changes_total",
			Help: "Changed elements detected, by entity type and change kind",
		},
		[]string{"entity", "change"},
	)
	r.ImpactsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagwatch_impact_analyses_total",
			Help: "Impact analyses by verdict",
		},
		[]string{"verdict"},
	)
	r.AnnotationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagwatch_annotations_total",
			Help: "Annotations posted, by outcome",
		},
		[]string{"status"},
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagwatch_analysis_duration_seconds",
			Help:    "Full diff-and-impact analysis duration",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)
	r.GraphBuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagwatch_graph_build_duration_seconds",
			Help:    "Dependency graph build duration",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tagwatch_graph_nodes",
			Help: "Variable nodes in the most recent dependency graph",
		},
	)
	r.GraphEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tagwatch_graph_edges",
			Help: "Typed edges in the most recent dependency graph",
		},
	)

	return r
}

// Prometheus exposes the underlying registry for HTTP handlers and tests.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// RecordRun records one container run with its outcome and duration.
func (r *Registry) RecordRun(status string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(status).Inc()
	r.AnalysisDuration.Observe(duration.Seconds())
}

// RecordChanges records the change counts of one diff.
func (r *Registry) RecordChanges(entity string, added, modified, deleted int) {
	r.ChangesTotal.WithLabelValues(entity, "added").Add(float64(added))
	r.ChangesTotal.WithLabelValues(entity, "modified").Add(float64(modified))
	r.ChangesTotal.WithLabelValues(entity, "deleted").Add(float64(deleted))
}

// RecordImpact records one verdict.
func (r *Registry) RecordImpact(impacted bool) {
	verdict := "no_impact"
	if impacted {
		verdict = "impact"
	}
	r.ImpactsTotal.WithLabelValues(verdict).Inc()
}

// RecordAnnotation records one annotation attempt.
func (r *Registry) RecordAnnotation(err error) {
	if err != nil {
		r.AnnotationsTotal.WithLabelValues("error").Inc()
		return
	}
	r.AnnotationsTotal.WithLabelValues("ok").Inc()
}

// ObserveGraph records the size of a freshly built graph.
func (r *Registry) ObserveGraph(nodes, edges int, buildTime time.Duration) {
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
	r.GraphBuildDuration.Observe(buildTime.Seconds())
}
