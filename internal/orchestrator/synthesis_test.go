package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/concord/internal/task"
)

func subtasksOf(parent *task.Task, n int) []*task.Task {
	out := make([]*task.Task, n)
	for i := range out {
		out[i] = task.MustNew(subtaskSpec(parent, i+1, fmt.Sprintf("part %d", i+1)))
	}
	return out
}

func TestSynthesize_MeanConfidence(t *testing.T) {
	parent := task.MustNew(task.Spec{ID: "p", Description: "do it", Priority: 5})

	for _, confs := range [][]float64{
		{0.5, 0.7},
		{0.9, 0.1, 0.4},
		{1, 1, 1, 1},
		{0.33, 0.66, 0.12, 0.87, 0.5, 0.01},
	} {
		subs := subtasksOf(parent, len(confs))
		results := make([]*task.Result, len(confs))
		var sum float64
		for i, c := range confs {
			results[i] = &task.Result{TaskID: subs[i].ID(), ExecutorID: "e", Success: true, Output: "out", Confidence: c}
			sum += c
		}

		res := synthesize(parent, subs, results, nil)
		require.True(t, res.Success)
		assert.InDelta(t, sum/float64(len(confs)), res.Confidence, 1e-9)
		assert.Equal(t, "p", res.TaskID)
	}
}

func TestSynthesize_SinglePassThrough(t *testing.T) {
	parent := task.MustNew(task.Spec{ID: "p", Description: "do it", Priority: 5})
	subs := subtasksOf(parent, 1)
	in := &task.Result{TaskID: subs[0].ID(), ExecutorID: "e", Success: true, Output: "exact output", Confidence: 0.42, ResourcesUsed: []string{"db"}}

	res := synthesize(parent, subs, []*task.Result{in}, nil)

	assert.Equal(t, "exact output", res.Output)
	assert.Equal(t, 0.42, res.Confidence)
	assert.Equal(t, "e", res.ExecutorID)
	assert.Equal(t, "p", res.TaskID)
	assert.Equal(t, subs[0].ID(), in.TaskID, "input result must not be modified")
}

func TestSynthesize_Attribution(t *testing.T) {
	parent := task.MustNew(task.Spec{ID: "p", Description: "do it", Priority: 5})
	subs := subtasksOf(parent, 2)
	results := []*task.Result{
		{TaskID: subs[0].ID(), ExecutorID: "a", Success: true, Output: "first", Confidence: 0.6, ResourcesUsed: []string{"web"}},
		{TaskID: subs[1].ID(), ExecutorID: "b", Success: true, Output: "second", Confidence: 0.8},
	}

	res := synthesize(parent, subs, results, nil)

	assert.Equal(t, "## p-sub-1 (a)\nfirst\n\n## p-sub-2 (b)\nsecond\n\n"+
		"## Synthesis\nCombined 2 results from a, b for \"do it\". Mean confidence 0.70.", res.Output)
	assert.Equal(t, SynthesizerID, res.ExecutorID)
	assert.Equal(t, []string{"a", "web", "b"}, res.ResourcesUsed)
}

func TestSynthesize_AllFailed(t *testing.T) {
	parent := task.MustNew(task.Spec{ID: "p", Description: "do it", Priority: 5})
	subs := subtasksOf(parent, 2)
	results := []*task.Result{
		task.Failed(subs[0].ID(), "a", "boom"),
		task.Failed(subs[1].ID(), "a", "boom"),
	}

	res := synthesize(parent, subs, results, []string{"p-sub-3"})

	assert.False(t, res.Success)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, "all 2 subtasks failed; failed: p-sub-1, p-sub-2; omitted (no capable executor): p-sub-3", res.Output)
}

func TestSynthesize_NothingRan(t *testing.T) {
	parent := task.MustNew(task.Spec{ID: "p", Description: "do it", Priority: 5})
	subs := subtasksOf(parent, 2)

	res := synthesize(parent, subs, nil, []string{"p-sub-1", "p-sub-2"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Output, "omitted")
}

func TestSynthesize_CollectsFollowUps(t *testing.T) {
	parent := task.MustNew(task.Spec{ID: "p", Description: "do it", Priority: 5})
	subs := subtasksOf(parent, 2)
	child := task.MustNew(task.Spec{ID: "c", Description: "later", Priority: 1})
	results := []*task.Result{
		{TaskID: subs[0].ID(), ExecutorID: "a", Success: true, Output: "x", Confidence: 1, ChildTasksProposed: []*task.Task{child}},
		task.Failed(subs[1].ID(), "a", "boom"),
	}

	res := synthesize(parent, subs, results, nil)

	require.Len(t, res.ChildTasksProposed, 1)
	assert.Equal(t, "x\n\nNote: failed subtasks: p-sub-2", res.Output)
}
