package coordinator

import (
	"fmt"

	"github.com/fyrsmithlabs/concord/internal/execution"
	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/hooks"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/orchestrator"
	"github.com/fyrsmithlabs/concord/internal/policy"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
)

// HistoryConfig bounds the in-memory histories. Zero keeps a history
// unbounded for the life of the process.
type HistoryConfig struct {
	MaxAuditRecords int `koanf:"max_audit_records" json:"max_audit_records"`
	MaxDecisions    int `koanf:"max_decisions" json:"max_decisions"`
	MaxOutcomes     int `koanf:"max_outcomes" json:"max_outcomes"`
}

// Config aggregates the configuration of every component.
type Config struct {
	Logging      *logging.Config     `koanf:"logging"`
	Telemetry    *telemetry.Config   `koanf:"telemetry"`
	Executor     executor.LoadConfig `koanf:"executor"`
	Validation   execution.Config    `koanf:"validation"`
	Orchestrator orchestrator.Config `koanf:"orchestrator"`
	Policy       policy.Config       `koanf:"policy"`
	Hooks        *hooks.Config       `koanf:"hooks"`
	History      HistoryConfig       `koanf:"history"`
}

// DefaultConfig returns defaults for every section.
func DefaultConfig() *Config {
	return &Config{
		Logging:      logging.NewDefaultConfig(),
		Telemetry:    telemetry.NewDefaultConfig(),
		Executor:     executor.DefaultLoadConfig(),
		Validation:   execution.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
		Policy:       policy.DefaultConfig(),
		Hooks:        hooks.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	if err := c.Executor.Validate(); err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Hooks != nil {
		if err := c.Hooks.Validate(); err != nil {
			return fmt.Errorf("hooks: %w", err)
		}
	}
	h := c.History
	if h.MaxAuditRecords < 0 || h.MaxDecisions < 0 || h.MaxOutcomes < 0 {
		return fmt.Errorf("history: limits must not be negative, got %+v", h)
	}
	return nil
}
