package policy

import (
	"fmt"

	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/orchestrator"
	"github.com/fyrsmithlabs/concord/internal/task"
)

// explorationVariants are the framings of exploratory tasks, in order.
var explorationVariants = []string{
	"Explore alternative approaches to: %s",
	"Investigate unconventional solutions for: %s",
	"Survey different perspectives on: %s",
}

// assignmentBuilder collects tasks per executor, keeping first-use order.
type assignmentBuilder struct {
	registry *executor.Registry
	out      []orchestrator.Assignment
}

func (b *assignmentBuilder) add(e *executor.Executor, t *task.Task) {
	for i := range b.out {
		if b.out[i].Executor.ID() == e.ID() {
			b.out[i].Tasks = append(b.out[i].Tasks, t)
			return
		}
	}
	b.out = append(b.out, orchestrator.Assignment{Executor: e, Tasks: []*task.Task{t}})
}

func (b *assignmentBuilder) used() []string {
	ids := make([]string, len(b.out))
	for i, a := range b.out {
		ids[i] = a.Executor.ID()
	}
	return ids
}

// buildAssignments creates the strategy's tasks and routes each to a capable
// executor. Tasks no executor can handle are left out.
func (m *Manager) buildAssignments(decisionID string, s Strategy, c Context) ([]orchestrator.Assignment, error) {
	b := &assignmentBuilder{registry: m.orch.Registry()}
	goal := c.goal()

	newTask := func(suffix, desc string, priority int) (*task.Task, error) {
		return task.New(task.Spec{
			ID:                   decisionID + "-" + suffix,
			Description:          desc,
			Priority:             priority,
			RequiredCapabilities: c.RequiredCapabilities,
			Hints: task.Hints{Attributes: map[string]string{
				"decision_id": decisionID,
				"strategy":    string(s),
			}},
		})
	}

	switch s {
	case StrategyGoalDirected:
		t, err := newTask("goal", goal, task.MaxPriority)
		if err != nil {
			return nil, err
		}
		if e, _, ok := b.registry.BestMatch(t); ok {
			b.add(e, t)
		}

	case StrategyExploratory:
		for i, variant := range explorationVariants {
			t, err := newTask(fmt.Sprintf("explore-%d", i+1), fmt.Sprintf(variant, goal), c.priority())
			if err != nil {
				return nil, err
			}
			e, _, ok := b.registry.BestMatch(t, b.used()...)
			if !ok {
				// Keep at least two variants in flight, sharing an executor
				// when no other can take one.
				if len(b.out) == 1 && len(b.out[0].Tasks) == 1 && b.out[0].Executor.CanHandle(t) {
					b.add(b.out[0].Executor, t)
				}
				continue
			}
			b.add(e, t)
		}

	case StrategyBalanced:
		gt, err := newTask("goal", goal, c.priority())
		if err != nil {
			return nil, err
		}
		et, err := newTask("explore", fmt.Sprintf(explorationVariants[0], goal), c.priority())
		if err != nil {
			return nil, err
		}
		if e, _, ok := b.registry.BestMatch(gt); ok {
			b.add(e, gt)
		}
		if e, _, ok := b.registry.BestMatch(et, b.used()...); ok {
			b.add(e, et)
		} else if e, _, ok := b.registry.BestMatch(et); ok {
			b.add(e, et)
		}

	case StrategyAdaptive:
		t, err := newTask("composite",
			"Coordinate goal-directed and exploratory work toward: "+goal, c.priority())
		if err != nil {
			return nil, err
		}
		if e, ok := b.registry.ByClass(m.cfg.OrchestratorClass, t); ok {
			b.add(e, t)
		} else if e, _, ok := b.registry.BestMatch(t); ok {
			b.add(e, t)
		}

	default:
		return nil, fmt.Errorf("unknown strategy %q", s)
	}

	return b.out, nil
}
