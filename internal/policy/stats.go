package policy

// Trend describes how exploration moved over recent decisions.
type Trend string

// Trends.
const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Statistics is a read-only snapshot of the manager's history.
type Statistics struct {
	TotalDecisions       int              `json:"total_decisions" yaml:"total_decisions"`
	StrategyDistribution map[Strategy]int `json:"strategy_distribution" yaml:"strategy_distribution"`
	AverageOutcomeValue  float64          `json:"average_outcome_value" yaml:"average_outcome_value"`
	ExplorationTrend     Trend            `json:"exploration_trend" yaml:"exploration_trend"`
	Evaluations          int              `json:"evaluations" yaml:"evaluations"`
}

// Statistics summarizes decisions and stored outcome evaluations.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	stats := Statistics{
		TotalDecisions:       m.total,
		StrategyDistribution: make(map[Strategy]int, len(m.distribution)),
	}
	for s, n := range m.distribution {
		stats.StrategyDistribution[s] = n
	}
	exploration := make([]float64, len(m.decisions))
	for i, d := range m.decisions {
		exploration[i] = d.Balance.Exploration
	}
	m.mu.Unlock()

	stats.ExplorationTrend = ExplorationTrend(exploration, m.cfg.TrendWindow, m.cfg.TrendHysteresis)

	evals := m.outcomes.values()
	stats.Evaluations = len(evals)
	if len(evals) > 0 {
		var sum float64
		for _, ev := range evals {
			sum += ev.OverallValue
		}
		stats.AverageOutcomeValue = sum / float64(len(evals))
	}
	return stats
}

// ExplorationTrend compares the mean exploration of the first and second
// halves of the last window values. A difference beyond hysteresis is a
// trend; fewer than two values is stable.
func ExplorationTrend(values []float64, window int, hysteresis float64) Trend {
	if window > 0 && len(values) > window {
		values = values[len(values)-window:]
	}
	if len(values) < 2 {
		return TrendStable
	}

	half := len(values) / 2
	diff := mean(values[half:]) - mean(values[:half])
	switch {
	case diff > hysteresis:
		return TrendIncreasing
	case diff < -hysteresis:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
