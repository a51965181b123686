package policy

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/concord/internal/config"
)

// Thresholds gate strategy selection.
type Thresholds struct {
	Exploitation float64 `koanf:"exploitation" json:"exploitation"`
	Exploration  float64 `koanf:"exploration" json:"exploration"`
	Tension      float64 `koanf:"tension" json:"tension"`
}

// BalanceConfig holds the context signal thresholds and the shift each
// signal applies to the balance.
type BalanceConfig struct {
	HighComplexity  float64         `koanf:"high_complexity" json:"high_complexity"`
	LowComplexity   float64         `koanf:"low_complexity" json:"low_complexity"`
	ComplexityShift float64         `koanf:"complexity_shift" json:"complexity_shift"`
	TimeConstraint  config.Duration `koanf:"time_constraint" json:"time_constraint"`
	TimeShift       float64         `koanf:"time_shift" json:"time_shift"`
	HighRisk        float64         `koanf:"high_risk" json:"high_risk"`
	LowRisk         float64         `koanf:"low_risk" json:"low_risk"`
	RiskShift       float64         `koanf:"risk_shift" json:"risk_shift"`
	NoveltyShift    float64         `koanf:"novelty_shift" json:"novelty_shift"`
}

// OutcomeWeights combine the outcome evaluation scores.
type OutcomeWeights struct {
	GoalAlignment float64 `koanf:"goal_alignment" json:"goal_alignment"`
	Novelty       float64 `koanf:"novelty" json:"novelty"`
	Feasibility   float64 `koanf:"feasibility" json:"feasibility"`
	Compliance    float64 `koanf:"compliance" json:"compliance"`
}

// Config holds policy settings. Every heuristic constant lives here.
type Config struct {
	Thresholds        Thresholds     `koanf:"thresholds" json:"thresholds"`
	Balance           BalanceConfig  `koanf:"balance" json:"balance"`
	OutcomeWeights    OutcomeWeights `koanf:"outcome_weights" json:"outcome_weights"`
	TrendWindow       int            `koanf:"trend_window" json:"trend_window"`
	TrendHysteresis   float64        `koanf:"trend_hysteresis" json:"trend_hysteresis"`
	OrchestratorClass string         `koanf:"orchestrator_class" json:"orchestrator_class"`
}

// DefaultConfig returns the standard policy settings.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			Exploitation: 0.7,
			Exploration:  0.7,
			Tension:      0.7,
		},
		Balance: BalanceConfig{
			HighComplexity:  7,
			LowComplexity:   4,
			ComplexityShift: 0.2,
			TimeConstraint:  config.Duration(30 * time.Minute),
			TimeShift:       0.3,
			HighRisk:        0.7,
			LowRisk:         0.3,
			RiskShift:       0.2,
			NoveltyShift:    0.3,
		},
		OutcomeWeights: OutcomeWeights{
			GoalAlignment: 0.3,
			Novelty:       0.2,
			Feasibility:   0.3,
			Compliance:    0.2,
		},
		TrendWindow:       10,
		TrendHysteresis:   0.1,
		OrchestratorClass: "orchestrator",
	}
}

func inUnit(v float64) bool { return v > 0 && v <= 1 }

// Validate checks the settings.
func (c Config) Validate() error {
	t := c.Thresholds
	if !inUnit(t.Exploitation) || !inUnit(t.Exploration) || !inUnit(t.Tension) {
		return fmt.Errorf("policy thresholds must be in (0,1], got %+v", t)
	}

	b := c.Balance
	if b.LowComplexity > b.HighComplexity {
		return fmt.Errorf("policy balance.low_complexity (%v) exceeds high_complexity (%v)", b.LowComplexity, b.HighComplexity)
	}
	if b.LowRisk > b.HighRisk {
		return fmt.Errorf("policy balance.low_risk (%v) exceeds high_risk (%v)", b.LowRisk, b.HighRisk)
	}
	for name, s := range map[string]float64{
		"complexity_shift": b.ComplexityShift,
		"time_shift":       b.TimeShift,
		"risk_shift":       b.RiskShift,
		"novelty_shift":    b.NoveltyShift,
	} {
		if s < 0 || s > 1 {
			return fmt.Errorf("policy balance.%s must be in [0,1], got %v", name, s)
		}
	}

	w := c.OutcomeWeights
	if w.GoalAlignment < 0 || w.Novelty < 0 || w.Feasibility < 0 || w.Compliance < 0 {
		return fmt.Errorf("policy outcome weights must not be negative")
	}
	if w.GoalAlignment+w.Novelty+w.Feasibility+w.Compliance == 0 {
		return fmt.Errorf("policy outcome weights must not all be zero")
	}

	if c.TrendWindow < 2 {
		return fmt.Errorf("policy trend_window must be at least 2, got %d", c.TrendWindow)
	}
	if c.TrendHysteresis < 0 {
		return fmt.Errorf("policy trend_hysteresis must not be negative")
	}
	return nil
}
