package execution

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/hooks"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

const instrumentationName = "github.com/fyrsmithlabs/concord/internal/execution"

// Wrapper dispatches tasks to executors between a pre-execution and a
// post-execution validation pass.
type Wrapper struct {
	engine  *validation.Engine
	cfg     Config
	audit   *AuditLog
	hooks   *hooks.HookManager
	logger  *logging.Logger
	metrics *metrics.Metrics

	tracer     trace.Tracer
	dispatches metric.Int64Counter
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithConfig overrides the self-correction configuration.
func WithConfig(cfg Config) Option {
	return func(w *Wrapper) { w.cfg = cfg }
}

// WithAuditLog sets the audit log. Defaults to an unbounded log.
func WithAuditLog(log *AuditLog) Option {
	return func(w *Wrapper) { w.audit = log }
}

// WithHooks sets the lifecycle hook manager.
func WithHooks(h *hooks.HookManager) Option {
	return func(w *Wrapper) { w.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Wrapper) { w.logger = logging.OrNop(l) }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wrapper) { w.metrics = m }
}

// WithTelemetry sets the tracer and meter source.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(w *Wrapper) { w.setTelemetry(tel) }
}

// New creates a Wrapper around engine.
func New(engine *validation.Engine, opts ...Option) (*Wrapper, error) {
	if engine == nil {
		return nil, fmt.Errorf("validation engine cannot be nil")
	}
	w := &Wrapper{
		engine: engine,
		cfg:    DefaultConfig(),
		audit:  NewAuditLog(0),
		logger: logging.NewNop(),
	}
	w.setTelemetry(nil)
	for _, opt := range opts {
		opt(w)
	}
	if err := w.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid execution config: %w", err)
	}
	if w.audit == nil {
		w.audit = NewAuditLog(0)
	}
	return w, nil
}

func (w *Wrapper) setTelemetry(tel *telemetry.Telemetry) {
	w.tracer = tel.Tracer(instrumentationName)
	counter, err := tel.Meter(instrumentationName).Int64Counter(
		"concord.execution.dispatches_total",
		metric.WithDescription("Validated dispatches by executor and outcome"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	w.dispatches = counter
}

// AuditLog returns the audit log.
func (w *Wrapper) AuditLog() *AuditLog { return w.audit }

// Engine returns the validation engine.
func (w *Wrapper) Engine() *validation.Engine { return w.engine }

// Dispatch runs t on e and returns the validated result. It never returns
// nil and never propagates executor errors: a failing executor yields a
// failed result with zero confidence.
func (w *Wrapper) Dispatch(ctx context.Context, e *executor.Executor, t *task.Task) *task.Result {
	start := time.Now()
	ctx = logging.WithTaskID(ctx, t.ID())
	ctx = logging.WithExecutorID(ctx, e.ID())
	ctx, span := w.tracer.Start(ctx, "execution.dispatch", trace.WithAttributes(
		attribute.String("task.id", t.ID()),
		attribute.String("executor.id", e.ID()),
		attribute.Int("task.priority", t.Priority()),
	))
	defer span.End()

	w.fire(ctx, task.StateQueued, t, e, "")

	md := validation.Metadata{TaskID: t.ID(), ExecutorID: e.ID(), Priority: t.Priority()}
	pre := w.engine.Validate(validation.PreInput(t.Description(), md))
	w.metrics.RecordValidation(string(validation.PhasePre), pre.OverallCompliant)

	dispatched := t
	if !pre.OverallCompliant {
		if guidance := pre.Guidance(); guidance != "" {
			dispatched = t.WithGuidance(guidance)
		}
		w.logger.Debug(ctx, "pre-execution validation attached guidance",
			zap.Strings("violations", pre.Violations()))
	}
	w.fire(ctx, task.StatePreValidated, t, e, "")

	w.metrics.SetExecutorLoad(e.ID(), e.Acquire())
	w.fire(ctx, task.StateRunning, t, e, "")
	res := w.run(ctx, e, t, dispatched)
	w.metrics.SetExecutorLoad(e.ID(), e.Release())

	post := w.engine.Validate(validation.PostInput(t.Description(), res.Output, md))
	w.metrics.RecordValidation(string(validation.PhasePost), post.OverallCompliant)
	w.fire(ctx, task.StatePostValidated, t, e, "")

	var correction string
	corrected := false
	if res.Success && !post.OverallCompliant && w.cfg.SelfCorrection && w.cfg.MaxAlternatives > 0 {
		in := validation.PostInput(t.Description(), res.Output, md)
		if alt, ok := w.correct(in, post); ok {
			res.Output = alt.Text
			correction, corrected = alt.Kind, true
			w.metrics.RecordCorrection()
			w.logger.Info(ctx, "correction applied",
				zap.String("rendering", alt.Kind),
				zap.Float64("score", alt.Score),
				zap.Strings("violations", post.Violations()),
			)
		}
	}

	status := task.StateCompleted
	if !res.Success {
		status = task.StateFailed
	}

	w.audit.Append(AuditRecord{
		TaskID:            t.ID(),
		ExecutorID:        e.ID(),
		Input:             t.Description(),
		PreVerdict:        pre,
		Verdict:           post,
		CorrectionApplied: corrected,
		Correction:        correction,
		FinalOutput:       res.Output,
		Status:            status,
	})

	outcome := metrics.OutcomeSuccess
	switch {
	case !res.Success:
		outcome = metrics.OutcomeFailure
		span.SetStatus(codes.Error, res.Output)
	case corrected:
		outcome = metrics.OutcomeCorrected
	}
	span.SetAttributes(
		attribute.Bool("result.success", res.Success),
		attribute.Bool("validation.compliant", post.OverallCompliant),
		attribute.Bool("validation.corrected", corrected),
		attribute.Float64("result.confidence", res.Confidence),
	)
	w.metrics.RecordDispatch(e.ID(), outcome, time.Since(start))
	w.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("executor", e.ID()),
		attribute.String("outcome", outcome),
	))

	w.fire(ctx, status, t, e, outcomeDetail(res))
	return res
}

// Reject returns a failed result for t that no executor produced, such as
// a capability mismatch or a synthesis with no successful subtask. The
// failure still passes post-execution validation and is audited, so every
// result handed to a caller has exactly one audit record.
func (w *Wrapper) Reject(ctx context.Context, t *task.Task, executorID, message string) *task.Result {
	ctx = logging.WithTaskID(ctx, t.ID())
	ctx, span := w.tracer.Start(ctx, "execution.reject", trace.WithAttributes(
		attribute.String("task.id", t.ID()),
		attribute.String("executor.id", executorID),
	))
	defer span.End()

	res := task.Failed(t.ID(), executorID, message)

	md := validation.Metadata{TaskID: t.ID(), ExecutorID: executorID, Priority: t.Priority()}
	post := w.engine.Validate(validation.PostInput(t.Description(), res.Output, md))
	w.metrics.RecordValidation(string(validation.PhasePost), post.OverallCompliant)

	w.audit.Append(AuditRecord{
		TaskID:      t.ID(),
		ExecutorID:  executorID,
		Input:       t.Description(),
		Verdict:     post,
		FinalOutput: res.Output,
		Status:      task.StateFailed,
	})

	span.SetStatus(codes.Error, message)
	w.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("executor", executorID),
		attribute.String("outcome", metrics.OutcomeRejected),
	))
	w.hooks.Fire(ctx, hooks.Event{
		Type:       hooks.ForState(task.StateFailed),
		TaskID:     t.ID(),
		ExecutorID: executorID,
		Detail:     message,
	})
	return res
}

// run executes the task and normalizes the result so it always belongs to
// t and e.
func (w *Wrapper) run(ctx context.Context, e *executor.Executor, t, dispatched *task.Task) *task.Result {
	out, err := e.Execute(ctx, dispatched)
	if err != nil {
		w.logger.Warn(ctx, "executor failed", zap.Error(err))
		return task.Failed(t.ID(), e.ID(), err.Error())
	}

	res := out.Clone()
	res.TaskID = t.ID()
	res.ExecutorID = e.ID()
	res.Confidence = clamp01(res.Confidence)
	if res.Extension == nil {
		res.Extension = task.Plain{}
	}
	if !res.Success {
		res.Confidence = 0
	}
	return res
}

func (w *Wrapper) fire(ctx context.Context, s task.State, t *task.Task, e *executor.Executor, detail string) {
	w.hooks.Fire(ctx, hooks.Event{
		Type:       hooks.ForState(s),
		TaskID:     t.ID(),
		ExecutorID: e.ID(),
		Detail:     detail,
	})
}

func outcomeDetail(res *task.Result) string {
	if res.Success {
		return ""
	}
	return res.Output
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
