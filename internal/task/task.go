// Package task defines the units of work exchanged between the coordination
// core and its executors: Task, Result and the lifecycle states a Task moves
// through while it is dispatched.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority bounds.
const (
	MinPriority = 1
	MaxPriority = 10
)

// Errors for task construction.
var (
	ErrInvalidTask     = errors.New("invalid task")
	ErrEmptyDesc       = fmt.Errorf("%w: description cannot be empty", ErrInvalidTask)
	ErrInvalidPriority = fmt.Errorf("%w: priority must be between %d and %d", ErrInvalidTask, MinPriority, MaxPriority)
)

// Hints carries typed context consumed by decomposition strategies.
// It replaces free-form key/value lookups with fields validated at
// construction time.
type Hints struct {
	// Files lists the files a multi-file analysis request covers.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// Phases lists the ordered phases of a multi-phase creative request.
	Phases []string `json:"phases,omitempty" yaml:"phases,omitempty"`

	// Attributes holds opaque caller metadata. Strategies never read it.
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

func (h Hints) clone() Hints {
	out := Hints{
		Files:  append([]string(nil), h.Files...),
		Phases: append([]string(nil), h.Phases...),
	}
	if len(h.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(h.Attributes))
		for k, v := range h.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

func (h Hints) validate() error {
	for i, f := range h.Files {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: hints.files[%d] is empty", ErrInvalidTask, i)
		}
	}
	for i, p := range h.Phases {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: hints.phases[%d] is empty", ErrInvalidTask, i)
		}
	}
	return nil
}

// Task is an immutable unit of work. Use New or Spec.Build to construct one;
// derived tasks are produced with the With* methods, which return copies.
type Task struct {
	id           string
	description  string
	priority     int
	capabilities []string
	hints        Hints
	deadline     *time.Time
	parentID     string
	guidance     string
}

// Spec describes a Task before validation.
type Spec struct {
	ID                   string
	Description          string
	Priority             int
	RequiredCapabilities []string
	Hints                Hints
	Deadline             *time.Time
	ParentTaskID         string
}

// NewID returns a fresh task identifier.
func NewID() string {
	return "task-" + uuid.New().String()
}

// New validates the spec and returns a Task. An empty ID is replaced by a
// generated one.
func New(spec Spec) (*Task, error) {
	return spec.Build()
}

// Build validates the spec and returns a Task.
func (s Spec) Build() (*Task, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		id = NewID()
	}
	if strings.TrimSpace(s.Description) == "" {
		return nil, ErrEmptyDesc
	}
	if s.Priority < MinPriority || s.Priority > MaxPriority {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPriority, s.Priority)
	}
	if err := s.Hints.validate(); err != nil {
		return nil, err
	}

	t := &Task{
		id:           id,
		description:  s.Description,
		priority:     s.Priority,
		capabilities: normalizeCapabilities(s.RequiredCapabilities),
		hints:        s.Hints.clone(),
		parentID:     s.ParentTaskID,
	}
	if s.Deadline != nil {
		d := *s.Deadline
		t.deadline = &d
	}
	return t, nil
}

// MustNew is New for statically known specs. It panics on invalid input.
func MustNew(spec Spec) *Task {
	t, err := New(spec)
	if err != nil {
		panic(err)
	}
	return t
}

func normalizeCapabilities(caps []string) []string {
	seen := make(map[string]struct{}, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ID returns the unique task identifier.
func (t *Task) ID() string { return t.id }

// Description returns the task description.
func (t *Task) Description() string { return t.description }

// Priority returns the task priority (1-10).
func (t *Task) Priority() int { return t.priority }

// RequiredCapabilities returns a copy of the required capability names, sorted.
func (t *Task) RequiredCapabilities() []string {
	return append([]string(nil), t.capabilities...)
}

// Requires reports whether name is one of the required capabilities.
func (t *Task) Requires(name string) bool {
	i := sort.SearchStrings(t.capabilities, name)
	return i < len(t.capabilities) && t.capabilities[i] == name
}

// Hints returns a copy of the typed decomposition context.
func (t *Task) Hints() Hints { return t.hints.clone() }

// Deadline returns the advisory deadline, if any. The core never enforces it.
func (t *Task) Deadline() (time.Time, bool) {
	if t.deadline == nil {
		return time.Time{}, false
	}
	return *t.deadline, true
}

// ParentTaskID returns the id of the task this one was decomposed from.
func (t *Task) ParentTaskID() string { return t.parentID }

// Guidance returns advisory text attached by pre-execution validation.
func (t *Task) Guidance() string { return t.guidance }

// Spec returns a spec equivalent to the task, useful for deriving subtasks.
func (t *Task) Spec() Spec {
	s := Spec{
		ID:                   t.id,
		Description:          t.description,
		Priority:             t.priority,
		RequiredCapabilities: t.RequiredCapabilities(),
		Hints:                t.hints.clone(),
		ParentTaskID:         t.parentID,
	}
	if t.deadline != nil {
		d := *t.deadline
		s.Deadline = &d
	}
	return s
}

// WithGuidance returns a copy of t carrying guidance and a description
// prefixed with it. The receiver is left untouched.
func (t *Task) WithGuidance(guidance string) *Task {
	cp := *t
	cp.capabilities = t.RequiredCapabilities()
	cp.hints = t.hints.clone()
	cp.guidance = guidance
	if guidance != "" {
		cp.description = "[guidance] " + guidance + "\n" + t.description
	}
	return &cp
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	return fmt.Sprintf("Task(%s, p=%d, caps=%v)", t.id, t.priority, t.capabilities)
}

// view is the serialized form of a Task.
type view struct {
	ID                   string     `json:"id" yaml:"id"`
	Description          string     `json:"description" yaml:"description"`
	Priority             int        `json:"priority" yaml:"priority"`
	RequiredCapabilities []string   `json:"required_capabilities,omitempty" yaml:"required_capabilities,omitempty"`
	Hints                *Hints     `json:"hints,omitempty" yaml:"hints,omitempty"`
	Deadline             *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	ParentTaskID         string     `json:"parent_task_id,omitempty" yaml:"parent_task_id,omitempty"`
	Guidance             string     `json:"guidance,omitempty" yaml:"guidance,omitempty"`
}

func (t *Task) view() view {
	v := view{
		ID:                   t.id,
		Description:          t.description,
		Priority:             t.priority,
		RequiredCapabilities: t.RequiredCapabilities(),
		Deadline:             t.deadline,
		ParentTaskID:         t.parentID,
		Guidance:             t.guidance,
	}
	if len(t.hints.Files) > 0 || len(t.hints.Phases) > 0 || len(t.hints.Attributes) > 0 {
		h := t.hints.clone()
		v.Hints = &h
	}
	return v
}

// MarshalJSON implements json.Marshaler.
func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.view())
}

// MarshalYAML implements yaml.Marshaler.
func (t *Task) MarshalYAML() (interface{}, error) {
	return t.view(), nil
}
