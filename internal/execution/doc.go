// Package execution wraps every dispatch to an executor with validation.
//
// A dispatch moves a task through queued, pre_validated, running,
// post_validated and finally completed or failed. Pre-execution
// validation is advisory: a non-compliant request is dispatched with
// guidance attached rather than blocked. Post-execution validation always
// runs, and a non-compliant successful output may be replaced by the best
// of up to three corrected renderings. Every dispatch appends one record
// to the audit log.
//
// Executor errors and panics never escape Dispatch; they become failed
// results with zero confidence.
package execution
