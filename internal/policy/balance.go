package policy

import (
	"fmt"
	"math"
	"strings"
)

// Balance is the exploitation/exploration split for one decision.
// Exploitation + Exploration is always 1.
type Balance struct {
	Exploitation float64 `json:"exploitation" yaml:"exploitation"`
	Exploration  float64 `json:"exploration" yaml:"exploration"`
	Tension      float64 `json:"tension" yaml:"tension"`
	Rationale    string  `json:"rationale" yaml:"rationale"`
}

// ComputeBalance applies the context signals, in a fixed order, to a 0.5/0.5
// starting point. Each signal shifts weight from one side to the other; the
// result is clamped to [0,1] and normalized to sum to 1.
func ComputeBalance(c Context, cfg BalanceConfig) Balance {
	exploit, explore := 0.5, 0.5
	var reasons []string

	shift := func(toExploration bool, delta float64, reason string) {
		if toExploration {
			explore += delta
			exploit -= delta
		} else {
			exploit += delta
			explore -= delta
		}
		reasons = append(reasons, reason)
	}

	switch {
	case c.Complexity > cfg.HighComplexity:
		shift(true, cfg.ComplexityShift, fmt.Sprintf("high complexity (%.1f) favors exploration", c.Complexity))
	case c.Complexity < cfg.LowComplexity:
		shift(false, cfg.ComplexityShift, fmt.Sprintf("low complexity (%.1f) favors exploitation", c.Complexity))
	}

	if limit := cfg.TimeConstraint.Duration(); c.TimeConstraint > 0 && c.TimeConstraint < limit {
		shift(false, cfg.TimeShift, fmt.Sprintf("tight time constraint (%s) favors exploitation", c.TimeConstraint))
	}

	switch {
	case c.RiskTolerance > cfg.HighRisk:
		shift(true, cfg.RiskShift, fmt.Sprintf("high risk tolerance (%.2f) allows exploration", c.RiskTolerance))
	case c.RiskTolerance < cfg.LowRisk:
		shift(false, cfg.RiskShift, fmt.Sprintf("low risk tolerance (%.2f) favors exploitation", c.RiskTolerance))
	}

	if c.NoveltyRequired {
		shift(true, cfg.NoveltyShift, "novelty required")
	}

	exploit, explore = clamp01(exploit), clamp01(explore)
	if sum := exploit + explore; sum > 0 {
		exploit, explore = exploit/sum, explore/sum
	} else {
		exploit, explore = 0.5, 0.5
	}

	rationale := "no strong signals; balanced default"
	if len(reasons) > 0 {
		rationale = strings.Join(reasons, "; ")
	}

	return Balance{
		Exploitation: exploit,
		Exploration:  explore,
		Tension:      math.Min(math.Abs(exploit-explore)*2, 1),
		Rationale:    rationale,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
