package policy

// Strategy is the coordination mode chosen for a decision.
type Strategy string

// Strategies.
const (
	StrategyGoalDirected Strategy = "goal_directed"
	StrategyExploratory  Strategy = "exploratory"
	StrategyBalanced     Strategy = "balanced"
	StrategyAdaptive     Strategy = "adaptive"
)

// Strategies lists every strategy in selection priority order.
func Strategies() []Strategy {
	return []Strategy{StrategyGoalDirected, StrategyExploratory, StrategyAdaptive, StrategyBalanced}
}

// SelectStrategy maps a balance to a strategy. It depends on nothing but
// b and the thresholds.
func SelectStrategy(b Balance, t Thresholds) Strategy {
	switch {
	case b.Exploitation > t.Exploitation:
		return StrategyGoalDirected
	case b.Exploration > t.Exploration:
		return StrategyExploratory
	case b.Tension > t.Tension:
		return StrategyAdaptive
	default:
		return StrategyBalanced
	}
}

// expectedOutcomes returns the canned outcome text for s.
func expectedOutcomes(s Strategy) []string {
	switch s {
	case StrategyGoalDirected:
		return []string{
			"Direct progress toward the stated goal",
			"Predictable result from a proven executor",
		}
	case StrategyExploratory:
		return []string{
			"Several alternative approaches to compare",
			"New insight into the problem space",
		}
	case StrategyAdaptive:
		return []string{
			"Coordinated response that adjusts to intermediate results",
			"Conflicting signals resolved by an orchestrating executor",
		}
	default:
		return []string{
			"Progress on the goal alongside one alternative",
			"Reduced risk of converging on a local optimum",
		}
	}
}

// contingencyPlans returns the canned fallback text for s.
func contingencyPlans(s Strategy) []string {
	switch s {
	case StrategyGoalDirected:
		return []string{
			"If the primary executor fails, retry with the next best match",
			"If progress stalls, shift toward a balanced strategy",
		}
	case StrategyExploratory:
		return []string{
			"If no variant succeeds, fall back to a goal-directed attempt",
			"If variants diverge, select the highest-value outcome",
		}
	case StrategyAdaptive:
		return []string{
			"If no orchestrator-class executor is available, use the best match",
			"If the composite task fails, split it into goal and exploration tasks",
		}
	default:
		return []string{
			"If the exploration task fails, keep the goal result",
			"If the goal task fails, promote the exploration result",
		}
	}
}
