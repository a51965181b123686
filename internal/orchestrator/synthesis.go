package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/concord/internal/task"
)

// SynthesizerID is the executor id reported on results combined from
// several subtasks.
const SynthesizerID = "orchestrator"

// synthesize combines subtask results into one result for parent.
func synthesize(parent *task.Task, subtasks []*task.Task, results []*task.Result, dropped []string) *task.Result {
	byID := make(map[string]*task.Result, len(results))
	for _, r := range results {
		byID[r.TaskID] = r
	}

	var ok []*task.Result
	var failed []string
	var proposed []*task.Task
	for _, st := range subtasks {
		r, ran := byID[st.ID()]
		if !ran {
			continue
		}
		proposed = append(proposed, r.ChildTasksProposed...)
		if r.Success {
			ok = append(ok, r)
		} else {
			failed = append(failed, st.ID())
		}
	}

	if len(ok) == 0 {
		out := task.Failed(parent.ID(), SynthesizerID, failureMessage(len(subtasks), failed, dropped))
		out.ChildTasksProposed = proposed
		return out
	}

	var out *task.Result
	if len(ok) == 1 {
		out = ok[0].Clone()
		out.TaskID = parent.ID()
	} else {
		out = combine(parent, ok)
	}
	out.ChildTasksProposed = proposed
	out.Extension = task.Plain{}
	if note := partialNote(failed, dropped); note != "" {
		out.Output += "\n\n" + note
	}
	return out
}

// combine concatenates attributed outputs and appends a synthesis paragraph.
// Confidence is the arithmetic mean.
func combine(parent *task.Task, ok []*task.Result) *task.Result {
	var b strings.Builder
	var total float64
	var executors, resources []string
	for _, r := range ok {
		fmt.Fprintf(&b, "## %s (%s)\n%s\n\n", r.TaskID, r.ExecutorID, strings.TrimSpace(r.Output))
		total += r.Confidence
		executors = appendUnique(executors, r.ExecutorID)
		resources = appendUnique(resources, r.ExecutorID)
		resources = appendUnique(resources, r.ResourcesUsed...)
	}
	mean := total / float64(len(ok))

	fmt.Fprintf(&b, "## Synthesis\nCombined %d results from %s for %q. Mean confidence %.2f.",
		len(ok), strings.Join(executors, ", "), parent.Description(), mean)

	return &task.Result{
		TaskID:        parent.ID(),
		ExecutorID:    SynthesizerID,
		Success:       true,
		Output:        b.String(),
		Confidence:    mean,
		ResourcesUsed: resources,
	}
}

func failureMessage(total int, failed, dropped []string) string {
	msg := fmt.Sprintf("all %d subtasks failed", total)
	if len(failed) > 0 {
		msg += "; failed: " + strings.Join(failed, ", ")
	}
	if len(dropped) > 0 {
		msg += "; omitted (no capable executor): " + strings.Join(dropped, ", ")
	}
	return msg
}

func partialNote(failed, dropped []string) string {
	var parts []string
	if len(failed) > 0 {
		parts = append(parts, "Note: failed subtasks: "+strings.Join(failed, ", "))
	}
	if len(dropped) > 0 {
		parts = append(parts, "Note: omitted subtasks (no capable executor): "+strings.Join(dropped, ", "))
	}
	return strings.Join(parts, "\n")
}
