package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/concord/internal/task"
)

// ErrInvalidContext is returned by Decide for out-of-range context fields.
var ErrInvalidContext = errors.New("invalid decision context")

// defaultGoal describes the work when the context names no goal.
const defaultGoal = "Advance the current objective"

// Context carries the signals a decision is computed from.
type Context struct {
	// Goal describes the desired outcome. Optional.
	Goal string `json:"goal,omitempty" yaml:"goal,omitempty" koanf:"goal"`
	// Complexity is the estimated task complexity, 0-10.
	Complexity float64 `json:"complexity" yaml:"complexity" koanf:"complexity"`
	// TimeConstraint is the time available; zero means unconstrained.
	TimeConstraint time.Duration `json:"time_constraint,omitempty" yaml:"time_constraint,omitempty" koanf:"time_constraint"`
	// RiskTolerance is the acceptable risk, 0-1.
	RiskTolerance float64 `json:"risk_tolerance" yaml:"risk_tolerance" koanf:"risk_tolerance"`
	// NoveltyRequired asks for new rather than proven approaches.
	NoveltyRequired bool `json:"novelty_required" yaml:"novelty_required" koanf:"novelty_required"`
	// RequiredCapabilities constrain which executors may take the work.
	RequiredCapabilities []string `json:"required_capabilities,omitempty" yaml:"required_capabilities,omitempty" koanf:"required_capabilities"`
	// Priority of generated tasks, 1-10. Zero means the default of 5.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty" koanf:"priority"`
}

// Validate checks field ranges.
func (c Context) Validate() error {
	if c.Complexity < 0 || c.Complexity > 10 {
		return fmt.Errorf("%w: complexity must be between 0 and 10, got %v", ErrInvalidContext, c.Complexity)
	}
	if c.RiskTolerance < 0 || c.RiskTolerance > 1 {
		return fmt.Errorf("%w: risk_tolerance must be between 0 and 1, got %v", ErrInvalidContext, c.RiskTolerance)
	}
	if c.TimeConstraint < 0 {
		return fmt.Errorf("%w: time_constraint must not be negative", ErrInvalidContext)
	}
	if c.Priority != 0 && (c.Priority < task.MinPriority || c.Priority > task.MaxPriority) {
		return fmt.Errorf("%w: priority must be between %d and %d, got %d", ErrInvalidContext, task.MinPriority, task.MaxPriority, c.Priority)
	}
	for i, name := range c.RequiredCapabilities {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: required_capabilities[%d] is empty", ErrInvalidContext, i)
		}
	}
	return nil
}

func (c Context) goal() string {
	if g := strings.TrimSpace(c.Goal); g != "" {
		return g
	}
	return defaultGoal
}

func (c Context) priority() int {
	if c.Priority == 0 {
		return 5
	}
	return c.Priority
}
