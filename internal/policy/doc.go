// Package policy chooses how to coordinate executors for a decision context.
//
// Every call to Decide recomputes an exploitation/exploration balance from
// the context signals, selects one of four strategies (goal_directed,
// exploratory, balanced, adaptive), builds strategy-specific assignments
// from the executor registry and appends the Decision to an in-memory
// history. Execute dispatches a decision's assignments and scores each
// result with an outcome evaluation kept for Statistics.
//
// Strategy selection is a pure function of the balance; see SelectStrategy.
package policy
