package policy

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/concord/internal/orchestrator"
	"github.com/fyrsmithlabs/concord/internal/task"
)

// Decision is the record of one Decide call. It is read-only once returned.
type Decision struct {
	ID        string
	Timestamp time.Time
	Context   Context
	Strategy  Strategy
	Balance   Balance

	// Assignments hold only executors that could handle their tasks at
	// assignment time, in assignment order.
	Assignments []orchestrator.Assignment

	ExpectedOutcomes []string
	ContingencyPlans []string
}

func newDecisionID() string {
	return "dec-" + uuid.New().String()
}

// AssignmentMap returns tasks keyed by executor id.
func (d *Decision) AssignmentMap() map[string][]*task.Task {
	out := make(map[string][]*task.Task, len(d.Assignments))
	for _, a := range d.Assignments {
		out[a.Executor.ID()] = append(out[a.Executor.ID()], a.Tasks...)
	}
	return out
}

// Tasks returns every assigned task in assignment order.
func (d *Decision) Tasks() []*task.Task {
	var out []*task.Task
	for _, a := range d.Assignments {
		out = append(out, a.Tasks...)
	}
	return out
}

type decisionView struct {
	ID               string                  `json:"id" yaml:"id"`
	Timestamp        time.Time               `json:"timestamp" yaml:"timestamp"`
	Context          Context                 `json:"context" yaml:"context"`
	Strategy         Strategy                `json:"strategy" yaml:"strategy"`
	Balance          Balance                 `json:"balance" yaml:"balance"`
	Assignments      map[string][]*task.Task `json:"assignments" yaml:"assignments"`
	ExpectedOutcomes []string                `json:"expected_outcomes" yaml:"expected_outcomes"`
	ContingencyPlans []string                `json:"contingency_plans" yaml:"contingency_plans"`
}

func (d *Decision) view() decisionView {
	return decisionView{
		ID:               d.ID,
		Timestamp:        d.Timestamp,
		Context:          d.Context,
		Strategy:         d.Strategy,
		Balance:          d.Balance,
		Assignments:      d.AssignmentMap(),
		ExpectedOutcomes: d.ExpectedOutcomes,
		ContingencyPlans: d.ContingencyPlans,
	}
}

// MarshalJSON renders assignments keyed by executor id.
func (d *Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.view())
}

// MarshalYAML renders assignments keyed by executor id.
func (d *Decision) MarshalYAML() (interface{}, error) {
	return d.view(), nil
}
