package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/concord/internal/hooks"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/orchestrator"
	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

const instrumentationName = "github.com/fyrsmithlabs/concord/internal/policy"

// Manager decides strategies, executes decisions and keeps their history.
type Manager struct {
	orch   *orchestrator.Orchestrator
	engine *validation.Engine
	cfg    Config

	maxDecisions int
	maxOutcomes  int

	mu           sync.Mutex
	decisions    []*Decision
	total        int
	distribution map[Strategy]int
	executions   map[string]*decisionRun
	outcomes     *outcomeStore

	hooks   *hooks.HookManager
	logger  *logging.Logger
	metrics *metrics.Metrics

	tracer        trace.Tracer
	decisionCount metric.Int64Counter
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig overrides the policy configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithHistoryLimits bounds the decision history and the outcome store.
// Zero leaves a history unbounded.
func WithHistoryLimits(decisions, outcomes int) Option {
	return func(m *Manager) {
		m.maxDecisions = decisions
		m.maxOutcomes = outcomes
	}
}

// WithHooks sets the hook manager notified of decisions and evaluations.
func WithHooks(h *hooks.HookManager) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(l) }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTelemetry sets the tracer and meter source.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(m *Manager) { m.setTelemetry(tel) }
}

// New creates a Manager dispatching through orch. engine scores the
// compliance of evaluated outcomes.
func New(orch *orchestrator.Orchestrator, engine *validation.Engine, opts ...Option) (*Manager, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("validation engine cannot be nil")
	}

	m := &Manager{
		orch:         orch,
		engine:       engine,
		cfg:          DefaultConfig(),
		distribution: make(map[Strategy]int),
		executions:   make(map[string]*decisionRun),
		logger:       logging.NewNop(),
	}
	m.setTelemetry(nil)
	for _, opt := range opts {
		opt(m)
	}

	if err := m.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}
	if m.maxDecisions < 0 || m.maxOutcomes < 0 {
		return nil, fmt.Errorf("history limits must not be negative")
	}

	store, err := newOutcomeStore(m.maxOutcomes)
	if err != nil {
		return nil, fmt.Errorf("creating outcome store: %w", err)
	}
	m.outcomes = store
	return m, nil
}

func (m *Manager) setTelemetry(tel *telemetry.Telemetry) {
	m.tracer = tel.Tracer(instrumentationName)
	counter, err := tel.Meter(instrumentationName).Int64Counter(
		"concord.policy.decisions_total",
		metric.WithDescription("Policy decisions by strategy"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	m.decisionCount = counter
}

// Decide computes the balance and strategy for c, builds assignments and
// records the decision. The only error is an invalid context; a context no
// executor can serve yields a decision with no assignments.
func (m *Manager) Decide(ctx context.Context, c Context) (*Decision, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	id := newDecisionID()
	ctx = logging.WithDecisionID(ctx, id)
	ctx, span := m.tracer.Start(ctx, "policy.decide", trace.WithAttributes(
		attribute.String("decision.id", id),
	))
	defer span.End()

	balance := ComputeBalance(c, m.cfg.Balance)
	strategy := SelectStrategy(balance, m.cfg.Thresholds)

	assignments, err := m.buildAssignments(id, strategy, c)
	if err != nil {
		// Task construction only fails on values Validate already rejected.
		m.logger.Error(ctx, "building assignments", zap.Error(err))
		assignments = nil
	}
	if len(assignments) == 0 {
		m.logger.Warn(ctx, "decision has no assignments: no capable executor",
			zap.String("strategy", string(strategy)),
			zap.Strings("capabilities", c.RequiredCapabilities),
		)
	}

	d := &Decision{
		ID:               id,
		Timestamp:        time.Now().UTC(),
		Context:          c,
		Strategy:         strategy,
		Balance:          balance,
		Assignments:      assignments,
		ExpectedOutcomes: expectedOutcomes(strategy),
		ContingencyPlans: contingencyPlans(strategy),
	}
	m.record(d)

	span.SetAttributes(
		attribute.String("policy.strategy", string(strategy)),
		attribute.Float64("policy.exploitation", balance.Exploitation),
		attribute.Float64("policy.exploration", balance.Exploration),
		attribute.Float64("policy.tension", balance.Tension),
		attribute.Int("policy.assignments", len(assignments)),
	)
	m.decisionCount.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", string(strategy))))
	m.metrics.RecordDecision(string(strategy))
	m.logger.Info(ctx, "decision recorded",
		zap.String("strategy", string(strategy)),
		zap.Float64("exploitation", balance.Exploitation),
		zap.Float64("exploration", balance.Exploration),
		zap.Int("assignments", len(assignments)),
	)
	m.hooks.Fire(ctx, hooks.Event{
		Type:       hooks.HookDecisionRecorded,
		DecisionID: id,
		Detail:     string(strategy),
		At:         d.Timestamp,
	})
	return d, nil
}

func (m *Manager) record(d *Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decisions = append(m.decisions, d)
	if m.maxDecisions > 0 && len(m.decisions) > m.maxDecisions {
		cut := len(m.decisions) - m.maxDecisions
		for _, old := range m.decisions[:cut] {
			if run, ok := m.executions[old.ID]; ok {
				run.report = nil
			}
		}
		m.decisions = append([]*Decision(nil), m.decisions[cut:]...)
	}
	m.total++
	m.distribution[d.Strategy]++
}

// EvaluationSummary aggregates the evaluations of one execution.
type EvaluationSummary struct {
	Evaluations map[string]OutcomeEvaluation `json:"evaluations" yaml:"evaluations"`
	Succeeded   int                          `json:"succeeded" yaml:"succeeded"`
	Failed      int                          `json:"failed" yaml:"failed"`
	MeanValue   float64                      `json:"mean_value" yaml:"mean_value"`
}

// ExecutionReport is the outcome of executing a decision.
type ExecutionReport struct {
	DecisionID string            `json:"decision_id" yaml:"decision_id"`
	Strategy   Strategy          `json:"strategy" yaml:"strategy"`
	Results    []*task.Result    `json:"results" yaml:"results"`
	Summary    EvaluationSummary `json:"summary" yaml:"summary"`
}

// decisionRun tracks the single execution of a decision. report is
// released once the decision leaves a bounded history; the id stays so the
// decision is never dispatched again.
type decisionRun struct {
	once   sync.Once
	report *ExecutionReport
}

func newReport(d *Decision) *ExecutionReport {
	report := &ExecutionReport{Summary: EvaluationSummary{Evaluations: map[string]OutcomeEvaluation{}}}
	if d != nil {
		report.DecisionID, report.Strategy = d.ID, d.Strategy
	}
	return report
}

// Execute dispatches d's assignments and evaluates every result against
// d's context. A decision is executed at most once: later calls return the
// first report, or an empty one when the decision has left a bounded
// history. It never returns nil.
func (m *Manager) Execute(ctx context.Context, d *Decision) *ExecutionReport {
	if d == nil {
		return newReport(nil)
	}

	m.mu.Lock()
	run, repeat := m.executions[d.ID]
	if !repeat {
		run = &decisionRun{}
		m.executions[d.ID] = run
	}
	m.mu.Unlock()

	run.once.Do(func() {
		report := m.execute(ctx, d)
		m.mu.Lock()
		run.report = report
		m.mu.Unlock()
	})
	if repeat {
		m.logger.Warn(logging.WithDecisionID(ctx, d.ID), "decision already executed, not dispatching again")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if run.report == nil {
		return newReport(d)
	}
	return run.report
}

func (m *Manager) execute(ctx context.Context, d *Decision) *ExecutionReport {
	report := newReport(d)

	ctx = logging.WithDecisionID(ctx, d.ID)
	ctx, span := m.tracer.Start(ctx, "policy.execute", trace.WithAttributes(
		attribute.String("decision.id", d.ID),
		attribute.String("policy.strategy", string(d.Strategy)),
	))
	defer span.End()

	inputs := make(map[string]string)
	for _, t := range d.Tasks() {
		inputs[t.ID()] = t.Description()
	}

	report.Results = m.orch.Dispatch(ctx, d.Assignments)

	var sum float64
	for _, res := range report.Results {
		input, ok := inputs[res.TaskID]
		if !ok {
			input = d.Context.goal()
		}
		ev := m.evaluate(ctx, d, input, res)
		report.Summary.Evaluations[res.TaskID] = ev
		sum += ev.OverallValue
		if res.Success {
			report.Summary.Succeeded++
		} else {
			report.Summary.Failed++
		}
	}
	if n := len(report.Results); n > 0 {
		report.Summary.MeanValue = sum / float64(n)
	}

	if report.Summary.Succeeded == 0 && report.Summary.Failed > 0 {
		span.SetStatus(codes.Error, "every assigned task failed")
	}
	span.SetAttributes(
		attribute.Int("execution.succeeded", report.Summary.Succeeded),
		attribute.Int("execution.failed", report.Summary.Failed),
		attribute.Float64("execution.mean_value", report.Summary.MeanValue),
	)
	return report
}

// Evaluate scores res against d's context and stores the evaluation under
// the result's task id.
func (m *Manager) Evaluate(ctx context.Context, d *Decision, res *task.Result) OutcomeEvaluation {
	input := d.Context.goal()
	for _, t := range d.Tasks() {
		if t.ID() == res.TaskID {
			input = t.Description()
			break
		}
	}
	return m.evaluate(ctx, d, input, res)
}

func (m *Manager) evaluate(ctx context.Context, d *Decision, input string, res *task.Result) OutcomeEvaluation {
	ev := Evaluate(d.Context.goal(), input, res, m.engine, m.cfg.OutcomeWeights)
	ev.DecisionID = d.ID
	ev.Strategy = d.Strategy
	ev.EvaluatedAt = time.Now().UTC()
	m.outcomes.put(ev)

	m.metrics.RecordOutcome(ev.OverallValue)
	m.logger.Debug(ctx, "outcome evaluated",
		zap.String("task_id", ev.TaskID),
		zap.Float64("overall_value", ev.OverallValue),
	)
	m.hooks.Fire(ctx, hooks.Event{
		Type:       hooks.HookOutcomeEvaluated,
		TaskID:     ev.TaskID,
		ExecutorID: res.ExecutorID,
		DecisionID: d.ID,
		Detail:     fmt.Sprintf("overall value %.2f", ev.OverallValue),
		At:         ev.EvaluatedAt,
	})
	return ev
}

// Outcome returns the stored evaluation for a task.
func (m *Manager) Outcome(taskID string) (OutcomeEvaluation, bool) {
	return m.outcomes.get(taskID)
}

// Decisions returns the decision history, oldest first.
func (m *Manager) Decisions() []*Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Decision(nil), m.decisions...)
}

// Reset clears the decision history, counters, executed-decision tracking
// and outcome store.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.decisions = nil
	m.total = 0
	m.distribution = make(map[Strategy]int)
	m.executions = make(map[string]*decisionRun)
	m.mu.Unlock()

	m.outcomes.reset()
}
