package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/metrics"
)

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.TransitionExecuted("kanban", "Work Started")
	m.TransitionExecuted("kanban", "Work Started")
	m.ValidationFailed("scrum")

	assert.Equal(t, 2.0, counterTotal(t, reg, "phaseline_transitions_executed_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "phaseline_transition_validation_failures_total"))
	assert.Equal(t, 0.0, counterTotal(t, reg, "phaseline_manual_status_changes_total"))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *metrics.Metrics
	m.TransitionExecuted("kanban", "x")
	m.ValidationFailed("kanban")
	m.ManualStatusChanged("blocked")
	m.PhaseCreated("lean")
}
