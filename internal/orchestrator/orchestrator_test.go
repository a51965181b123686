package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/concord/internal/execution"
	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

func respond(conf float64) executor.PerformerFunc {
	return func(_ context.Context, t *task.Task) (*task.Result, error) {
		return &task.Result{Success: true, Output: "Handled: " + t.Description(), Confidence: conf}, nil
	}
}

func mustExecutor(t *testing.T, id string, caps []executor.Capability, p executor.Performer, opts ...executor.Option) *executor.Executor {
	t.Helper()
	e, err := executor.New(id, caps, p, opts...)
	require.NoError(t, err)
	return e
}

func analysis(cost, rel float64) []executor.Capability {
	return []executor.Capability{{Name: "analysis", Cost: cost, Reliability: rel}}
}

type fixture struct {
	registry *executor.Registry
	wrapper  *execution.Wrapper
	orch     *Orchestrator
	logs     *logging.TestLogger
}

func newFixture(t *testing.T, executors []*executor.Executor, opts ...Option) *fixture {
	t.Helper()
	reg := executor.NewRegistry()
	require.NoError(t, reg.Register(executors...))
	w, err := execution.New(validation.NewDefaultEngine())
	require.NoError(t, err)
	tl := logging.NewTestLogger()
	o, err := New(reg, w, append([]Option{WithLogger(tl.Logger)}, opts...)...)
	require.NoError(t, err)
	return &fixture{registry: reg, wrapper: w, orch: o, logs: tl}
}

func TestNew_Validation(t *testing.T) {
	w, err := execution.New(validation.NewDefaultEngine())
	require.NoError(t, err)

	_, err = New(nil, w)
	assert.Error(t, err)
	_, err = New(executor.NewRegistry(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.ComplexQuery.MaxSubtasks = 0
	_, err = New(executor.NewRegistry(), w, WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidStrategyConfig)
}

func TestRun_DirectExecutionRoundTrip(t *testing.T) {
	f := newFixture(t, []*executor.Executor{
		mustExecutor(t, "analyst", analysis(2, 0.9), respond(0.8)),
	})
	tk := task.MustNew(task.Spec{ID: "direct", Description: "Summarize the incident report", Priority: 5, RequiredCapabilities: []string{"analysis"}})

	res := f.orch.Run(context.Background(), tk)

	assert.True(t, res.Success)
	assert.Equal(t, "direct", res.TaskID)
	assert.Equal(t, "analyst", res.ExecutorID)
	assert.Equal(t, "Handled: Summarize the incident report", res.Output)
	assert.Equal(t, 1, f.wrapper.AuditLog().Len())
}

func TestRun_NoCapableExecutor(t *testing.T) {
	f := newFixture(t, []*executor.Executor{
		mustExecutor(t, "analyst", analysis(2, 0.9), respond(0.8)),
	})
	tk := task.MustNew(task.Spec{ID: "x", Description: "Paint a mural", Priority: 5, RequiredCapabilities: []string{"painting"}})

	res := f.orch.Run(context.Background(), tk)

	assert.False(t, res.Success)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, "x", res.TaskID)
	assert.Contains(t, res.Output, "no capable executor")
	f.logs.AssertLogged(t, zapcore.WarnLevel, "no capable executor")

	records := f.wrapper.AuditLog().Records(0)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].TaskID)
	assert.Equal(t, task.StateFailed, records[0].Status)
	assert.Equal(t, res.Output, records[0].FinalOutput)
}

func TestRun_ComplexQuerySynthesis(t *testing.T) {
	confidences := []float64{0.9, 0.6, 0.75, 0.5, 0.8}
	var calls atomic.Int32
	p := executor.PerformerFunc(func(_ context.Context, tk *task.Task) (*task.Result, error) {
		i := int(calls.Add(1)) - 1
		return &task.Result{Success: true, Output: "Handled: " + tk.Description(), Confidence: confidences[i%len(confidences)]}, nil
	})
	f := newFixture(t, []*executor.Executor{mustExecutor(t, "analyst", analysis(2, 0.9), p)})
	tk := task.MustNew(task.Spec{ID: "q1", Description: longConnectiveRequest, Priority: 5})

	res := f.orch.Run(context.Background(), tk)

	require.True(t, res.Success)
	assert.Equal(t, "q1", res.TaskID)
	assert.Equal(t, SynthesizerID, res.ExecutorID)
	assert.Contains(t, res.Output, "## q1-sub-1 (analyst)")
	assert.Contains(t, res.Output, "## Synthesis")

	n := int(calls.Load())
	require.GreaterOrEqual(t, n, 2)
	var sum float64
	for i := 0; i < n; i++ {
		sum += confidences[i%len(confidences)]
	}
	assert.InDelta(t, sum/float64(n), res.Confidence, 1e-9)
	assert.Equal(t, n, f.wrapper.AuditLog().Len())
}

func TestRun_PartialFailure(t *testing.T) {
	p := executor.PerformerFunc(func(_ context.Context, tk *task.Task) (*task.Result, error) {
		if strings.HasSuffix(tk.ID(), "-sub-2") {
			return nil, errors.New("timeout talking to model")
		}
		return &task.Result{Success: true, Output: "Handled: " + tk.Description(), Confidence: 0.8}, nil
	})
	f := newFixture(t, []*executor.Executor{mustExecutor(t, "writer", analysis(2, 0.9), p)})
	tk := task.MustNew(task.Spec{
		ID:          "story",
		Description: "Write a story about the harbor",
		Priority:    5,
		Hints:       task.Hints{Phases: []string{"outline", "draft", "polish"}},
	})

	res := f.orch.Run(context.Background(), tk)

	assert.True(t, res.Success)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.True(t, strings.HasSuffix(res.Output, "Note: failed subtasks: story-sub-2"))
}

func TestRun_AllSubtasksFail(t *testing.T) {
	p := executor.PerformerFunc(func(context.Context, *task.Task) (*task.Result, error) {
		return nil, errors.New("offline")
	})
	f := newFixture(t, []*executor.Executor{mustExecutor(t, "writer", analysis(2, 0.9), p)})
	tk := task.MustNew(task.Spec{
		ID:          "story",
		Description: "Write a story",
		Priority:    5,
		Hints:       task.Hints{Phases: []string{"outline", "draft"}},
	})

	res := f.orch.Run(context.Background(), tk)

	assert.False(t, res.Success)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, "story", res.TaskID)
	assert.Contains(t, res.Output, "all 2 subtasks failed")
	assert.Contains(t, res.Output, "story-sub-1, story-sub-2")
	assert.Equal(t, SynthesizerID, res.ExecutorID)

	records := f.wrapper.AuditLog().Records(0)
	require.Len(t, records, 3, "two subtask dispatches and the combined failure")
	last := records[2]
	assert.Equal(t, "story", last.TaskID)
	assert.Equal(t, SynthesizerID, last.ExecutorID)
	assert.Equal(t, task.StateFailed, last.Status)
	assert.Equal(t, res.Output, last.FinalOutput)
}

type fixedDecomposer struct {
	specs func(t *task.Task) []task.Spec
	panic bool
}

func (d fixedDecomposer) Name() string          { return "fixed" }
func (d fixedDecomposer) Match(*task.Task) bool { return true }
func (d fixedDecomposer) Split(t *task.Task) ([]task.Spec, error) {
	if d.panic {
		panic("index out of range")
	}
	return d.specs(t), nil
}

func TestRun_DropsUnassignableSubtasks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	dec := fixedDecomposer{specs: func(t *task.Task) []task.Spec {
		a := subtaskSpec(t, 1, "Analyze the error budget")
		b := subtaskSpec(t, 2, "Paint the dashboard")
		b.RequiredCapabilities = []string{"painting"}
		return []task.Spec{a, b}
	}}
	f := newFixture(t,
		[]*executor.Executor{mustExecutor(t, "analyst", analysis(2, 0.9), respond(0.7))},
		WithDecomposers(dec), WithMetrics(m),
	)
	tk := task.MustNew(task.Spec{ID: "p", Description: "Analyze and paint", Priority: 5})

	res := f.orch.Run(context.Background(), tk)

	assert.True(t, res.Success)
	assert.Equal(t, "Handled: Analyze the error budget\n\nNote: omitted subtasks (no capable executor): p-sub-2", res.Output)
	f.logs.AssertLogged(t, zapcore.WarnLevel, "subtask omitted")
	f.logs.AssertField(t, "subtask omitted: no capable executor", "subtask_id", "p-sub-2")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubtasksDroppedTotal))
}

func TestRun_DecompositionPanicFallsBack(t *testing.T) {
	f := newFixture(t,
		[]*executor.Executor{mustExecutor(t, "analyst", analysis(2, 0.9), respond(0.7))},
		WithDecomposers(fixedDecomposer{panic: true}),
	)
	tk := task.MustNew(task.Spec{ID: "p", Description: "Analyze the error budget", Priority: 5})

	res := f.orch.Run(context.Background(), tk)

	assert.True(t, res.Success)
	assert.Equal(t, "p", res.TaskID)
	assert.Equal(t, "Handled: Analyze the error budget", res.Output)
	f.logs.AssertLogged(t, zapcore.WarnLevel, "decomposition failed")
}

func TestAssign_BestMatchAndOrder(t *testing.T) {
	cheap := mustExecutor(t, "cheap", analysis(1, 0.6), respond(0.5))
	strong := mustExecutor(t, "strong", analysis(2, 0.95), respond(0.5))
	broken := mustExecutor(t, "broken", analysis(1, 0), respond(0.5))
	writer := mustExecutor(t, "writer", []executor.Capability{{Name: "writing", Cost: 3, Reliability: 0.9}}, respond(0.5))
	f := newFixture(t, []*executor.Executor{broken, cheap, strong, writer})

	t1 := task.MustNew(task.Spec{ID: "t1", Description: "write", Priority: 5, RequiredCapabilities: []string{"writing"}})
	t2 := task.MustNew(task.Spec{ID: "t2", Description: "analyze", Priority: 5, RequiredCapabilities: []string{"analysis"}})
	t3 := task.MustNew(task.Spec{ID: "t3", Description: "write more", Priority: 5, RequiredCapabilities: []string{"writing"}})

	assignments, dropped := f.orch.Assign(context.Background(), []*task.Task{t1, t2, t3})

	assert.Empty(t, dropped)
	require.Len(t, assignments, 2)
	assert.Equal(t, "writer", assignments[0].Executor.ID())
	assert.Equal(t, []*task.Task{t1, t3}, assignments[0].Tasks)
	// cheap scores 0.6/1, strong 0.95/2; broken has zero reliability.
	assert.Equal(t, "cheap", assignments[1].Executor.ID())
}

func TestDispatch_FanOutAndSequentialChains(t *testing.T) {
	var mu sync.Mutex
	running := map[string]int{}
	maxPerExecutor := map[string]int{}
	started := make(chan string, 4)
	release := make(chan struct{})

	blocking := func(id string) executor.PerformerFunc {
		return func(_ context.Context, tk *task.Task) (*task.Result, error) {
			mu.Lock()
			running[id]++
			if running[id] > maxPerExecutor[id] {
				maxPerExecutor[id] = running[id]
			}
			mu.Unlock()

			started <- id
			<-release

			mu.Lock()
			running[id]--
			mu.Unlock()
			return &task.Result{Success: true, Output: "Handled: " + tk.Description(), Confidence: 0.9}, nil
		}
	}

	a := mustExecutor(t, "a", analysis(2, 0.9), blocking("a"))
	b := mustExecutor(t, "b", analysis(2, 0.9), blocking("b"))
	f := newFixture(t, []*executor.Executor{a, b})

	mk := func(id string) *task.Task {
		return task.MustNew(task.Spec{ID: id, Description: "check " + id, Priority: 5})
	}
	assignments := []Assignment{
		{Executor: a, Tasks: []*task.Task{mk("a1"), mk("a2")}},
		{Executor: b, Tasks: []*task.Task{mk("b1"), mk("b2")}},
	}

	done := make(chan []*task.Result)
	go func() { done <- f.orch.Dispatch(context.Background(), assignments) }()

	// Both chains start before either finishes.
	first := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-started:
			first[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("chains did not start concurrently")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, first)
	close(release)

	var results []*task.Result
	select {
	case results = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not finish")
	}

	require.Len(t, results, 4)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.TaskID
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, ids)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, maxPerExecutor)
}

func TestRun_FollowUpSurfaced(t *testing.T) {
	child := task.MustNew(task.Spec{ID: "child", Description: "Write the tests", Priority: 3})
	p := executor.PerformerFunc(func(_ context.Context, tk *task.Task) (*task.Result, error) {
		return &task.Result{
			Success: true, Output: "Handled: " + tk.Description(), Confidence: 0.8,
			Extension: task.FollowUp{Tasks: []*task.Task{child}},
		}, nil
	})
	f := newFixture(t, []*executor.Executor{mustExecutor(t, "dev", analysis(2, 0.9), p)})

	res := f.orch.Run(context.Background(), task.MustNew(task.Spec{ID: "impl", Description: "Implement the parser", Priority: 5}))

	require.Len(t, res.ChildTasksProposed, 1)
	assert.Equal(t, "child", res.ChildTasksProposed[0].ID())
	assert.Equal(t, 1, f.wrapper.AuditLog().Len(), "follow-ups are never executed")
}

func TestRun_CollaborationRequest(t *testing.T) {
	var reviewerCalls atomic.Int32
	author := executor.PerformerFunc(func(_ context.Context, tk *task.Task) (*task.Result, error) {
		return &task.Result{
			Success: true, Output: "Handled: " + tk.Description(), Confidence: 0.8,
			Extension: task.CollaborationRequest{Capabilities: []string{"review"}, Message: "Review the parser draft"},
		}, nil
	})
	reviewer := executor.PerformerFunc(func(_ context.Context, tk *task.Task) (*task.Result, error) {
		reviewerCalls.Add(1)
		// Asking again must not trigger a second round.
		return &task.Result{
			Success: true, Output: "Reviewed: " + tk.Description(), Confidence: 0.9,
			Extension: task.CollaborationRequest{Capabilities: []string{"analysis"}},
		}, nil
	})
	f := newFixture(t, []*executor.Executor{
		mustExecutor(t, "author", analysis(2, 0.9), author),
		mustExecutor(t, "reviewer", []executor.Capability{{Name: "review", Cost: 2, Reliability: 0.9}}, reviewer),
	})

	res := f.orch.Run(context.Background(), task.MustNew(task.Spec{ID: "impl", Description: "Draft the parser", Priority: 5, RequiredCapabilities: []string{"analysis"}}))

	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "## Collaboration (reviewer)\nReviewed: Review the parser draft")
	assert.Contains(t, res.ResourcesUsed, "reviewer")
	assert.Equal(t, int32(1), reviewerCalls.Load())

	records := f.wrapper.AuditLog().Records(0)
	require.Len(t, records, 2)
	assert.Equal(t, "impl", records[0].TaskID)
	assert.NotContains(t, records[0].FinalOutput, "## Collaboration", "requester record holds its own validated output")
	assert.Equal(t, "impl-collab", records[1].TaskID)
	assert.Equal(t, "reviewer", records[1].ExecutorID)
	assert.Equal(t, records[0].FinalOutput+"\n\n## Collaboration (reviewer)\n"+records[1].FinalOutput, res.Output)
}

func TestRun_CollaborationDisabled(t *testing.T) {
	author := executor.PerformerFunc(func(_ context.Context, tk *task.Task) (*task.Result, error) {
		return &task.Result{
			Success: true, Output: "Handled: " + tk.Description(), Confidence: 0.8,
			Extension: task.CollaborationRequest{Capabilities: []string{"review"}},
		}, nil
	})
	cfg := DefaultConfig()
	cfg.Collaboration = false
	f := newFixture(t, []*executor.Executor{
		mustExecutor(t, "author", analysis(2, 0.9), author),
		mustExecutor(t, "reviewer", []executor.Capability{{Name: "review", Cost: 2, Reliability: 0.9}}, respond(0.9)),
	}, WithConfig(cfg))

	res := f.orch.Run(context.Background(), task.MustNew(task.Spec{ID: "impl", Description: "Draft the parser", Priority: 5}))

	assert.NotContains(t, res.Output, "Collaboration")
	assert.Equal(t, 1, f.wrapper.AuditLog().Len())
}

func TestRun_Span(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	f := newFixture(t,
		[]*executor.Executor{mustExecutor(t, "analyst", analysis(2, 0.9), respond(0.8))},
		WithTelemetry(tt.Telemetry),
	)

	f.orch.Run(context.Background(), task.MustNew(task.Spec{ID: "s", Description: "Summarize the notes", Priority: 5}))

	tt.AssertSpanExists(t, "orchestrator.run")
	tt.AssertSpanAttribute(t, "orchestrator.run", "task.id", "s")
	tt.AssertSpanAttribute(t, "orchestrator.run", "decomposition.subtasks", int64(0))
}
