// Package hooks notifies observers of task lifecycle transitions and policy
// events.
//
// The execution wrapper fires one event per state a task passes through
// (queued, pre_validated, running, post_validated, then completed or
// failed). The policy manager fires decision_recorded and
// outcome_evaluated. Handler failures are logged and never reach the
// component that fired the event.
package hooks
