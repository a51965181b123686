// Package metrics exposes Prometheus collectors for the coordination core.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Dispatch outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCorrected = "corrected"
	OutcomeRejected  = "rejected"
)

// Metrics holds Prometheus metrics for dispatch, validation and decisions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Dispatch
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	ExecutorLoad     *prometheus.GaugeVec

	// Validation
	ValidationTotal  *prometheus.CounterVec
	CorrectionsTotal prometheus.Counter

	// Orchestration
	SubtasksDroppedTotal prometheus.Counter

	// Policy
	DecisionsTotal *prometheus.CounterVec
	OutcomeValue   prometheus.Histogram
}

// NewMetrics returns the process-wide metrics registered with the default
// registry.
//
// sync.Once guards against "duplicate metrics collector registration"
// panics when several components ask for metrics.
//
// Metrics:
//   - concord_dispatch_total{executor,outcome} - Count of executor dispatches
//   - concord_dispatch_duration_seconds{executor} - Dispatch latency
//   - concord_executor_load{executor} - Current executor load (0-1)
//   - concord_validation_total{phase,compliant} - Validation verdicts
//   - concord_corrections_total - Outputs replaced by self-correction
//   - concord_subtasks_dropped_total - Subtasks with no capable executor
//   - concord_decisions_total{strategy} - Policy decisions by strategy
//   - concord_outcome_value - Distribution of evaluated outcome values
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return globalMetrics
}

// NewWithRegistry registers a fresh set of collectors with reg. Tests use it
// with a private prometheus.Registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		DispatchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_dispatch_total",
				Help: "Total number of tasks dispatched to executors",
			},
			[]string{"executor", "outcome"},
		),
		DispatchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_dispatch_duration_seconds",
				Help:    "Duration of validated dispatches in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"executor"},
		),
		ExecutorLoad: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "concord_executor_load",
				Help: "Current coarse load of each executor",
			},
			[]string{"executor"},
		),
		ValidationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_validation_total",
				Help: "Total number of validation passes",
			},
			[]string{"phase", "compliant"},
		),
		CorrectionsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "concord_corrections_total",
				Help: "Total number of outputs replaced by self-correction",
			},
		),
		SubtasksDroppedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "concord_subtasks_dropped_total",
				Help: "Total number of subtasks dropped for lack of a capable executor",
			},
		),
		DecisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_decisions_total",
				Help: "Total number of policy decisions",
			},
			[]string{"strategy"},
		),
		OutcomeValue: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "concord_outcome_value",
				Help:    "Overall value of evaluated task outcomes",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
	}
}

// RecordDispatch records one dispatch and its duration.
func (m *Metrics) RecordDispatch(executor, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(executor, outcome).Inc()
	m.DispatchDuration.WithLabelValues(executor).Observe(d.Seconds())
}

// SetExecutorLoad records the current load of an executor.
func (m *Metrics) SetExecutorLoad(executor string, load float64) {
	if m == nil {
		return
	}
	m.ExecutorLoad.WithLabelValues(executor).Set(load)
}

// RecordValidation records one validation verdict.
func (m *Metrics) RecordValidation(phase string, compliant bool) {
	if m == nil {
		return
	}
	m.ValidationTotal.WithLabelValues(phase, strconv.FormatBool(compliant)).Inc()
}

// RecordCorrection records an output replaced by self-correction.
func (m *Metrics) RecordCorrection() {
	if m == nil {
		return
	}
	m.CorrectionsTotal.Inc()
}

// RecordSubtaskDropped records a subtask no executor could take.
func (m *Metrics) RecordSubtaskDropped() {
	if m == nil {
		return
	}
	m.SubtasksDroppedTotal.Inc()
}

// RecordDecision records a policy decision.
func (m *Metrics) RecordDecision(strategy string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(strategy).Inc()
}

// RecordOutcome records an evaluated outcome value.
func (m *Metrics) RecordOutcome(value float64) {
	if m == nil {
		return
	}
	m.OutcomeValue.Observe(value)
}
