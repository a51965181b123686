package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/concord/internal/execution"
	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/concord/internal/orchestrator"

// Assignment is the ordered list of tasks routed to one executor.
type Assignment struct {
	Executor *executor.Executor
	Tasks    []*task.Task
}

// Orchestrator decomposes, assigns, dispatches and synthesizes tasks.
type Orchestrator struct {
	registry    *executor.Registry
	wrapper     *execution.Wrapper
	cfg         Config
	decomposers []Decomposer

	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides the strategy configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithDecomposers replaces the built-in strategies.
func WithDecomposers(d ...Decomposer) Option {
	return func(o *Orchestrator) { o.decomposers = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTelemetry sets the tracer source.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *Orchestrator) { o.tracer = tel.Tracer(instrumentationName) }
}

// New creates an Orchestrator over the registry, dispatching through wrapper.
func New(registry *executor.Registry, wrapper *execution.Wrapper, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if wrapper == nil {
		return nil, fmt.Errorf("execution wrapper cannot be nil")
	}

	o := &Orchestrator{
		registry: registry,
		wrapper:  wrapper,
		cfg:      DefaultConfig(),
		logger:   logging.NewNop(),
		tracer:   (*telemetry.Telemetry)(nil).Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.decomposers == nil {
		o.decomposers = DefaultDecomposers(o.cfg)
	}
	return o, nil
}

// Registry returns the executor registry.
func (o *Orchestrator) Registry() *executor.Registry { return o.registry }

// Run executes t, decomposing it when a strategy matches, and returns one
// synthesized result whose TaskID is t's id.
func (o *Orchestrator) Run(ctx context.Context, t *task.Task) *task.Result {
	ctx = logging.WithTaskID(ctx, t.ID())
	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("task.id", t.ID()),
	))
	defer span.End()

	strategy, subtasks := o.decompose(ctx, t)
	span.SetAttributes(
		attribute.String("decomposition.strategy", strategy),
		attribute.Int("decomposition.subtasks", len(subtasks)),
	)

	if len(subtasks) == 0 {
		return o.runDirect(ctx, t)
	}

	assignments, dropped := o.Assign(ctx, subtasks)
	span.SetAttributes(attribute.Int("assignment.dropped", len(dropped)))

	results := o.Dispatch(ctx, assignments)
	res := synthesize(t, subtasks, results, dropped)
	if !res.Success {
		rejected := o.wrapper.Reject(ctx, t, SynthesizerID, res.Output)
		rejected.ChildTasksProposed = res.ChildTasksProposed
		res = rejected
	}
	span.SetAttributes(
		attribute.Bool("result.success", res.Success),
		attribute.Float64("result.confidence", res.Confidence),
	)
	return res
}

func (o *Orchestrator) runDirect(ctx context.Context, t *task.Task) *task.Result {
	e, _, ok := o.registry.BestMatch(t)
	if !ok {
		o.logger.Warn(ctx, "no capable executor for task",
			zap.Strings("required_capabilities", t.RequiredCapabilities()))
		return o.wrapper.Reject(ctx, t, "", fmt.Sprintf("no capable executor for task %s (requires %v)", t.ID(), t.RequiredCapabilities()))
	}
	return o.dispatchOne(ctx, e, t)
}

// decompose returns the subtasks of the first matching strategy, or none.
// A strategy that errors or panics yields no decomposition.
func (o *Orchestrator) decompose(ctx context.Context, t *task.Task) (string, []*task.Task) {
	for _, d := range o.decomposers {
		specs, matched, err := safeDecompose(d, t)
		if err != nil {
			o.logger.Warn(ctx, "decomposition failed, executing directly",
				zap.String("strategy", d.Name()), zap.Error(err))
			return "", nil
		}
		if !matched {
			continue
		}

		subtasks := make([]*task.Task, 0, len(specs))
		for _, s := range specs {
			st, err := s.Build()
			if err != nil {
				o.logger.Warn(ctx, "decomposition produced an invalid subtask, executing directly",
					zap.String("strategy", d.Name()), zap.Error(err))
				return "", nil
			}
			subtasks = append(subtasks, st)
		}
		if len(subtasks) < 2 {
			return "", nil
		}
		o.logger.Debug(ctx, "task decomposed",
			zap.String("strategy", d.Name()), zap.Int("subtasks", len(subtasks)))
		return d.Name(), subtasks
	}
	return "", nil
}

func safeDecompose(d Decomposer, t *task.Task) (specs []task.Spec, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			specs, matched, err = nil, false, fmt.Errorf("strategy %s panicked: %v", d.Name(), r)
		}
	}()
	if !d.Match(t) {
		return nil, false, nil
	}
	specs, err = d.Split(t)
	if err != nil {
		return nil, false, fmt.Errorf("strategy %s: %w", d.Name(), err)
	}
	return specs, true, nil
}

// Assign routes each task to its best-matching executor. Assignments keep
// the order in which executors were first chosen; tasks keep their input
// order within an assignment. Tasks no executor can take are returned as
// dropped ids.
func (o *Orchestrator) Assign(ctx context.Context, tasks []*task.Task) (assignments []Assignment, dropped []string) {
	index := make(map[string]int)
	for _, t := range tasks {
		e, est, ok := o.registry.BestMatch(t)
		if !ok {
			dropped = append(dropped, t.ID())
			o.metrics.RecordSubtaskDropped()
			o.logger.Warn(ctx, "subtask omitted: no capable executor",
				zap.String("subtask_id", t.ID()),
				zap.Strings("required_capabilities", t.RequiredCapabilities()))
			continue
		}
		o.logger.Trace(ctx, "subtask assigned",
			zap.String("subtask_id", t.ID()),
			zap.String("executor_id", e.ID()),
			zap.Float64("score", est.Score()))

		i, seen := index[e.ID()]
		if !seen {
			i = len(assignments)
			index[e.ID()] = i
			assignments = append(assignments, Assignment{Executor: e})
		}
		assignments[i].Tasks = append(assignments[i].Tasks, t)
	}
	return assignments, dropped
}

// Dispatch runs each assignment's tasks sequentially, all assignments
// concurrently, and waits for every chain. Results are returned in
// assignment order, then task order. A failing chain never cancels its
// siblings.
func (o *Orchestrator) Dispatch(ctx context.Context, assignments []Assignment) []*task.Result {
	chains := make([][]*task.Result, len(assignments))

	var g errgroup.Group
	for i, a := range assignments {
		g.Go(func() error {
			out := make([]*task.Result, 0, len(a.Tasks))
			for _, t := range a.Tasks {
				out = append(out, o.dispatchOne(ctx, a.Executor, t))
			}
			chains[i] = out
			return nil
		})
	}
	_ = g.Wait()

	var results []*task.Result
	for _, c := range chains {
		results = append(results, c...)
	}
	return results
}

// dispatchOne runs t through the wrapper and resolves its extension.
func (o *Orchestrator) dispatchOne(ctx context.Context, e *executor.Executor, t *task.Task) *task.Result {
	res := o.wrapper.Dispatch(ctx, e, t)

	switch ext := res.ExtensionOrPlain().(type) {
	case task.Plain:
	case task.FollowUp:
		res.ChildTasksProposed = append(res.ChildTasksProposed, ext.Tasks...)
	case task.CollaborationRequest:
		if o.cfg.Collaboration && res.Success {
			o.collaborate(ctx, e, t, res, ext)
		}
	}
	return res
}

// collaborate dispatches one collaboration task to the best other executor
// and appends its output. The collaborator's own extensions are not
// followed.
//
// Both outputs are validated and audited separately: the requester's audit
// record holds its output before the collaboration section is appended, and
// the collaboration task (id "<task>-collab") has its own record.
func (o *Orchestrator) collaborate(ctx context.Context, requester *executor.Executor, t *task.Task, res *task.Result, req task.CollaborationRequest) {
	desc := req.Message
	if desc == "" {
		desc = "Assist with: " + t.Description()
	}
	ct, err := task.New(task.Spec{
		ID:                   t.ID() + "-collab",
		Description:          desc,
		Priority:             t.Priority(),
		RequiredCapabilities: req.Capabilities,
		ParentTaskID:         t.ID(),
	})
	if err != nil {
		o.logger.Warn(ctx, "invalid collaboration request", zap.Error(err))
		return
	}

	partner, _, ok := o.registry.BestMatch(ct, requester.ID())
	if !ok {
		o.logger.Info(ctx, "collaboration request unmet: no capable partner",
			zap.Strings("capabilities", req.Capabilities))
		return
	}

	cres := o.wrapper.Dispatch(ctx, partner, ct)
	if !cres.Success {
		o.logger.Warn(ctx, "collaboration failed",
			zap.String("partner_id", partner.ID()), zap.String("error", cres.Output))
		return
	}
	res.Output += fmt.Sprintf("\n\n## Collaboration (%s)\n%s", partner.ID(), cres.Output)
	res.ResourcesUsed = appendUnique(res.ResourcesUsed, partner.ID())
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, have := range list {
			if have == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}
