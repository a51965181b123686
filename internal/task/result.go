package task

import (
	"encoding/json"
	"strings"
)

// Extension is the optional variant part of a Result. The set of variants is
// closed: Plain, FollowUp and CollaborationRequest.
type Extension interface {
	extension()
	// Kind returns a stable name for the variant.
	Kind() string
}

// Plain marks a Result with no follow-up work.
type Plain struct{}

func (Plain) extension() {}

// Kind implements Extension.
func (Plain) Kind() string { return "plain" }

// FollowUp carries child tasks an executor proposes. They are surfaced to the
// caller and never executed automatically.
type FollowUp struct {
	Tasks []*Task `json:"tasks" yaml:"tasks"`
}

func (FollowUp) extension() {}

// Kind implements Extension.
func (FollowUp) Kind() string { return "follow_up" }

// CollaborationRequest asks the orchestrator to involve another executor
// holding the listed capabilities.
type CollaborationRequest struct {
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Message      string   `json:"message" yaml:"message"`
}

func (CollaborationRequest) extension() {}

// Kind implements Extension.
func (CollaborationRequest) Kind() string { return "collaboration_request" }

// Result is the outcome of executing one Task.
type Result struct {
	TaskID        string   `json:"task_id" yaml:"task_id"`
	ExecutorID    string   `json:"executor_id" yaml:"executor_id"`
	Success       bool     `json:"success" yaml:"success"`
	Output        string   `json:"output" yaml:"output"`
	Confidence    float64  `json:"confidence" yaml:"confidence"`
	ResourcesUsed []string `json:"resources_used,omitempty" yaml:"resources_used,omitempty"`

	// Extension is nil or one of Plain, FollowUp, CollaborationRequest.
	Extension Extension `json:"-" yaml:"-"`

	// ChildTasksProposed collects follow-up proposals surfaced by the
	// orchestrator from this result and any contributing subtask results.
	ChildTasksProposed []*Task `json:"child_tasks_proposed,omitempty" yaml:"child_tasks_proposed,omitempty"`
}

// Failed builds a failed Result with zero confidence.
func Failed(taskID, executorID, message string) *Result {
	return &Result{
		TaskID:     taskID,
		ExecutorID: executorID,
		Success:    false,
		Output:     message,
		Confidence: 0,
		Extension:  Plain{},
	}
}

// ExtensionOrPlain returns the result's extension, defaulting to Plain.
func (r *Result) ExtensionOrPlain() Extension {
	if r == nil || r.Extension == nil {
		return Plain{}
	}
	return r.Extension
}

// Clone returns a shallow copy whose slices are independent of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	cp.ResourcesUsed = append([]string(nil), r.ResourcesUsed...)
	cp.ChildTasksProposed = append([]*Task(nil), r.ChildTasksProposed...)
	return &cp
}

// MarshalJSON implements json.Marshaler, adding the extension kind.
func (r *Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		*alias
		Extension string `json:"extension"`
	}{
		alias:     (*alias)(r),
		Extension: r.ExtensionOrPlain().Kind(),
	})
}

// State is a step in the dispatch lifecycle of a Task.
type State string

const (
	StateQueued        State = "queued"
	StatePreValidated  State = "pre_validated"
	StateRunning       State = "running"
	StatePostValidated State = "post_validated"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// Lifecycle returns the states in transition order, ending with the
// given terminal state.
func Lifecycle(terminal State) []State {
	return []State{StateQueued, StatePreValidated, StateRunning, StatePostValidated, terminal}
}

// IsTerminal reports whether s ends the lifecycle.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Words splits text into lowercase word tokens, dropping punctuation.
// Shared by the heuristics that compare task and output text.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'' || r == '-')
	})
}
