package metrics

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Prometheus().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for name, value := range labels {
		if got[name] != value {
			return false
		}
	}
	return true
}

func TestRecordRun(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("analyzed", 120*time.Millisecond)
	r.RecordRun("analyzed", 80*time.Millisecond)
	r.RecordRun("error", 5*time.Millisecond)

	require.Equal(t, 2.0, counterValue(t, r, "tagwatch_runs_total", map[string]string{"status": "analyzed"}))
	require.Equal(t, 1.0, counterValue(t, r, "tagwatch_runs_total", map[string]string{"status": "error"}))
}

func TestRecordChanges(t *testing.T) {
	r := NewRegistry()
	r.RecordChanges("tag", 2, 1, 0)
	r.RecordChanges("variable", 0, 3, 1)

	require.Equal(t, 2.0, counterValue(t, r, "tagwatch_changes_total", map[string]string{"entity": "tag", "change": "added"}))
	require.Equal(t, 1.0, counterValue(t, r, "tagwatch_changes_total", map[string]string{"entity": "tag", "change": "modified"}))
	require.Equal(t, 3.0, counterValue(t, r, "tagwatch_changes_total", map[string]string{"entity": "variable", "change": "modified"}))
	require.Equal(t, 1.0, counterValue(t, r, "tagwatch_changes_total", map[string]string{"entity": "variable", "change": "deleted"}))
}

func TestRecordImpact(t *testing.T) {
	r := NewRegistry()
	r.RecordImpact(true)
	r.RecordImpact(true)
	r.RecordImpact(false)

	require.Equal(t, 2.0, counterValue(t, r, "tagwatch_impact_analyses_total", map[string]string{"verdict": "impact"}))
	require.Equal(t, 1.0, counterValue(t, r, "tagwatch_impact_analyses_total", map[string]string{"verdict": "no_impact"}))
}

func TestRecordAnnotation(t *testing.T) {
	r := NewRegistry()
	r.RecordAnnotation(nil)
	r.RecordAnnotation(errors.New("quota"))

	require.Equal(t, 1.0, counterValue(t, r, "tagwatch_annotations_total", map[string]string{"status": "ok"}))
	require.Equal(t, 1.0, counterValue(t, r, "tagwatch_annotations_total", map[string]string{"status": "error"}))
}

func TestObserveGraph(t *testing.T) {
	r := NewRegistry()
	r.ObserveGraph(120, 340, 15*time.Millisecond)

	families, err := r.Prometheus().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		if family.GetType() == dto.MetricType_GAUGE && len(family.GetMetric()) == 1 {
			values[family.GetName()] = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	require.Equal(t, 120.0, values["tagwatch_graph_nodes"])
	require.Equal(t, 340.0, values["tagwatch_graph_edges"])
}
