// Package metrics holds the Prometheus collectors for the transition engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
//
// Metrics:
//   - phaseline_transitions_executed_total{methodology,reason}
//   - phaseline_transition_validation_failures_total{methodology}
//   - phaseline_manual_status_changes_total{status}
//   - phaseline_phases_created_total{methodology}
type Metrics struct {
	TransitionsExecuted *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	ManualStatusChanges *prometheus.CounterVec
	PhasesCreated       *prometheus.CounterVec
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry()
// per server so tests can build more than one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsExecuted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phaseline_transitions_executed_total",
			Help: "Phase transitions appended to the audit trail",
		}, []string{"methodology", "reason"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phaseline_transition_validation_failures_total",
			Help: "Transition attempts rejected for unacknowledged requirements",
		}, []string{"methodology"}),
		ManualStatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phaseline_manual_status_changes_total",
			Help: "Unaudited manual phase status overrides",
		}, []string{"status"}),
		PhasesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phaseline_phases_created_total",
			Help: "Phase instances created",
		}, []string{"methodology"}),
	}
}

func (m *Metrics) TransitionExecuted(methodology, reason string) {
	if m == nil {
		return
	}
	m.TransitionsExecuted.WithLabelValues(methodology, reason).Inc()
}

func (m *Metrics) ValidationFailed(methodology string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(methodology).Inc()
}

func (m *Metrics) ManualStatusChanged(status string) {
	if m == nil {
		return
	}
	m.ManualStatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) PhaseCreated(methodology string) {
	if m == nil {
		return
	}
	m.PhasesCreated.WithLabelValues(methodology).Inc()
}
