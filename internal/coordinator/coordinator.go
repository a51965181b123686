package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/concord/internal/execution"
	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/hooks"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/orchestrator"
	"github.com/fyrsmithlabs/concord/internal/policy"
	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

// Coordinator owns the components of the coordination core.
type Coordinator struct {
	cfg *Config

	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	metrics   *metrics.Metrics
	rules     []validation.Rule

	registry *executor.Registry
	engine   *validation.Engine
	hooks    *hooks.HookManager
	audit    *execution.AuditLog
	wrapper  *execution.Wrapper
	orch     *orchestrator.Orchestrator
	policy   *policy.Manager
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger shared by every component.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.OrNop(l) }
}

// WithTelemetry sets the tracer and meter source. The caller keeps
// ownership and shuts it down.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Coordinator) { c.telemetry = tel }
}

// WithMetrics sets the Prometheus metrics. Defaults to the process-wide
// metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithRules replaces the built-in validation principles.
func WithRules(rules ...validation.Rule) Option {
	return func(c *Coordinator) { c.rules = rules }
}

// New validates cfg and builds every component. A nil cfg uses defaults.
func New(cfg *Config, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Coordinator{
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewMetrics()
	}

	c.engine = validation.NewDefaultEngine()
	if c.rules != nil {
		engine, err := validation.NewEngine(c.rules...)
		if err != nil {
			return nil, fmt.Errorf("creating validation engine: %w", err)
		}
		c.engine = engine
	}

	c.registry = executor.NewRegistry()
	c.hooks = hooks.NewHookManager(cfg.Hooks, c.logger)
	c.audit = execution.NewAuditLog(cfg.History.MaxAuditRecords)

	var err error
	c.wrapper, err = execution.New(c.engine,
		execution.WithConfig(cfg.Validation),
		execution.WithAuditLog(c.audit),
		execution.WithHooks(c.hooks),
		execution.WithLogger(c.logger.Named("execution")),
		execution.WithMetrics(c.metrics),
		execution.WithTelemetry(c.telemetry),
	)
	if err != nil {
		return nil, fmt.Errorf("creating execution wrapper: %w", err)
	}

	c.orch, err = orchestrator.New(c.registry, c.wrapper,
		orchestrator.WithConfig(cfg.Orchestrator),
		orchestrator.WithLogger(c.logger.Named("orchestrator")),
		orchestrator.WithMetrics(c.metrics),
		orchestrator.WithTelemetry(c.telemetry),
	)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	c.policy, err = policy.New(c.orch, c.engine,
		policy.WithConfig(cfg.Policy),
		policy.WithHistoryLimits(cfg.History.MaxDecisions, cfg.History.MaxOutcomes),
		policy.WithHooks(c.hooks),
		policy.WithLogger(c.logger.Named("policy")),
		policy.WithMetrics(c.metrics),
		policy.WithTelemetry(c.telemetry),
	)
	if err != nil {
		return nil, fmt.Errorf("creating policy manager: %w", err)
	}
	return c, nil
}

// Config returns the configuration the coordinator was built with.
func (c *Coordinator) Config() *Config { return c.cfg }

// Registry returns the executor registry.
func (c *Coordinator) Registry() *executor.Registry { return c.registry }

// Engine returns the validation engine.
func (c *Coordinator) Engine() *validation.Engine { return c.engine }

// Hooks returns the lifecycle hook manager.
func (c *Coordinator) Hooks() *hooks.HookManager { return c.hooks }

// Orchestrator returns the orchestrator.
func (c *Coordinator) Orchestrator() *orchestrator.Orchestrator { return c.orch }

// Policy returns the policy manager.
func (c *Coordinator) Policy() *policy.Manager { return c.policy }

// NewExecutor creates an executor using the configured load parameters.
// It is not registered.
func (c *Coordinator) NewExecutor(id string, caps []executor.Capability, p executor.Performer, opts ...executor.Option) (*executor.Executor, error) {
	opts = append([]executor.Option{executor.WithLoadConfig(c.cfg.Executor)}, opts...)
	return executor.New(id, caps, p, opts...)
}

// Register adds executors to the registry in order.
func (c *Coordinator) Register(executors ...*executor.Executor) error {
	if err := c.registry.Register(executors...); err != nil {
		return err
	}
	for _, e := range executors {
		c.logger.Debug(context.Background(), "executor registered",
			zap.String("executor_id", e.ID()),
			zap.String("class", e.Class()),
		)
		c.metrics.SetExecutorLoad(e.ID(), e.Load())
	}
	return nil
}

// RunTask runs t through the orchestrator. It always returns a result.
func (c *Coordinator) RunTask(ctx context.Context, t *task.Task) *task.Result {
	return c.orch.Run(ctx, t)
}

// Decide makes and records a policy decision.
func (c *Coordinator) Decide(ctx context.Context, pc policy.Context) (*policy.Decision, error) {
	return c.policy.Decide(ctx, pc)
}

// Execute dispatches a decision and evaluates its outcomes.
func (c *Coordinator) Execute(ctx context.Context, d *policy.Decision) *policy.ExecutionReport {
	return c.policy.Execute(ctx, d)
}

// Statistics is a snapshot of decision and audit history.
type Statistics struct {
	policy.Statistics `yaml:",inline"`

	AuditRecords int `json:"audit_records" yaml:"audit_records"`
	Executors    int `json:"executors" yaml:"executors"`
}

// Statistics returns decision statistics plus history sizes.
func (c *Coordinator) Statistics() Statistics {
	return Statistics{
		Statistics:   c.policy.Statistics(),
		AuditRecords: c.audit.Len(),
		Executors:    c.registry.Len(),
	}
}

// AuditHistory returns the most recent audit records, oldest first.
// A limit of zero or less returns every record.
func (c *Coordinator) AuditHistory(limit int) []execution.AuditRecord {
	return c.audit.Records(limit)
}

// Reset clears the audit log, decision history, outcome store and every
// executor's load. Registered executors and hook handlers are kept.
func (c *Coordinator) Reset() {
	c.audit.Reset()
	c.policy.Reset()
	c.registry.ResetLoads()
	for _, e := range c.registry.All() {
		c.metrics.SetExecutorLoad(e.ID(), 0)
	}
}
