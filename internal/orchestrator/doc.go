// Package orchestrator turns one task into one result.
//
// # Flow
//
//	decompose → assign → dispatch (fan-out/fan-in) → synthesize
//
// Decomposition strategies are tried in order; the first whose predicate
// matches splits the task into subtasks. With no match the task runs
// directly on its best-matching executor.
//
// Each subtask goes to the capable executor with the highest
// reliability / max(cost, 1). Subtasks no executor can take are dropped
// and logged. Chains for different executors run concurrently; tasks for
// the same executor run in order. Every dispatch goes through the
// execution wrapper, so each result is validated exactly once.
//
// Synthesis passes a single successful output through unchanged and
// otherwise concatenates attributed outputs with a closing synthesis
// paragraph. Confidence is the mean of the successful results.
//
// Run never returns an error: capability mismatches, executor failures
// and decomposition panics all end up as a well-formed Result.
package orchestrator
