package executor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/concord/internal/task"
)

func echoPerformer() Performer {
	return PerformerFunc(func(ctx context.Context, t *task.Task) (*task.Result, error) {
		return &task.Result{TaskID: t.ID(), Success: true, Output: t.Description(), Confidence: 0.8}, nil
	})
}

func newTask(t *testing.T, caps ...string) *task.Task {
	t.Helper()
	tk, err := task.New(task.Spec{ID: "t1", Description: "do work", Priority: 5, RequiredCapabilities: caps})
	require.NoError(t, err)
	return tk
}

func mustExecutor(t *testing.T, id string, caps []Capability, opts ...Option) *Executor {
	t.Helper()
	e, err := New(id, caps, echoPerformer(), opts...)
	require.NoError(t, err)
	return e
}

func TestCapability_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cap     Capability
		wantErr bool
	}{
		{"valid", Capability{Name: "analysis", Cost: 3, Reliability: 0.9}, false},
		{"empty name", Capability{Cost: 3, Reliability: 0.9}, true},
		{"cost below range", Capability{Name: "a", Cost: 0.5, Reliability: 0.9}, true},
		{"cost above range", Capability{Name: "a", Cost: 11, Reliability: 0.9}, true},
		{"reliability above range", Capability{Name: "a", Cost: 3, Reliability: 1.1}, true},
		{"zero reliability allowed", Capability{Name: "a", Cost: 3, Reliability: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cap.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCapability)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", nil, echoPerformer())
	assert.ErrorIs(t, err, ErrInvalidExecutor)

	_, err = New("e1", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidExecutor)

	_, err = New("e1", []Capability{{Name: "a", Cost: 1, Reliability: 1}, {Name: "a", Cost: 2, Reliability: 1}}, echoPerformer())
	assert.ErrorIs(t, err, ErrInvalidCapability)

	_, err = New("e1", nil, echoPerformer(), WithLoadConfig(LoadConfig{Increment: 0, Saturation: 0.9}))
	assert.Error(t, err)
}

func TestExecutor_CanHandle(t *testing.T) {
	e := mustExecutor(t, "analyst", []Capability{
		{Name: "analysis", Cost: 4, Reliability: 0.9},
		{Name: "writing", Cost: 2, Reliability: 0.7},
	})

	assert.True(t, e.CanHandle(newTask(t, "analysis")))
	assert.True(t, e.CanHandle(newTask(t, "analysis", "writing")))
	assert.True(t, e.CanHandle(newTask(t)), "no requirements matches any declared capability")
	assert.False(t, e.CanHandle(newTask(t, "analysis", "design")))

	e.SetActive(false)
	assert.False(t, e.CanHandle(newTask(t, "analysis")))
	e.SetActive(true)

	// Five increments reach load 1.0, past saturation.
	for i := 0; i < 5; i++ {
		e.Acquire()
	}
	assert.False(t, e.CanHandle(newTask(t, "analysis")))
	e.Release()
	assert.InDelta(t, 0.8, e.Load(), 1e-9)
	assert.True(t, e.CanHandle(newTask(t, "analysis")))
}

func TestExecutor_CanHandleRejectsZeroReliability(t *testing.T) {
	e := mustExecutor(t, "flaky", []Capability{{Name: "analysis", Cost: 1, Reliability: 0}})
	assert.False(t, e.CanHandle(newTask(t, "analysis")))
}

func TestExecutor_CanHandleWithoutCapabilities(t *testing.T) {
	e := mustExecutor(t, "empty", nil)
	assert.False(t, e.CanHandle(newTask(t)))
	assert.Equal(t, Unusable, e.Estimate(newTask(t)))
}

func TestExecutor_Estimate(t *testing.T) {
	e := mustExecutor(t, "analyst", []Capability{
		{Name: "analysis", Cost: 4, Reliability: 0.9},
		{Name: "writing", Cost: 2, Reliability: 0.7},
	})

	est := e.Estimate(newTask(t, "analysis", "writing"))
	assert.InDelta(t, 3.0, est.Cost, 1e-9)
	assert.InDelta(t, 0.8, est.Reliability, 1e-9)

	e.Acquire() // load 0.2
	est = e.Estimate(newTask(t, "analysis"))
	assert.InDelta(t, 4*1.2, est.Cost, 1e-9)
	assert.InDelta(t, 0.9*(1-0.3*0.2), est.Reliability, 1e-9)

	est = e.Estimate(newTask(t, "design"))
	assert.True(t, math.IsInf(est.Cost, 1))
	assert.Zero(t, est.Reliability)
	assert.Zero(t, est.Score())
}

func TestExecutor_CanHandleImpliesUsableEstimate(t *testing.T) {
	executors := []*Executor{
		mustExecutor(t, "a", []Capability{{Name: "analysis", Cost: 10, Reliability: 0.01}}),
		mustExecutor(t, "b", []Capability{{Name: "analysis", Cost: 1, Reliability: 1}, {Name: "writing", Cost: 5, Reliability: 0}}),
		mustExecutor(t, "c", []Capability{{Name: "writing", Cost: 5, Reliability: 0.5}}),
	}
	tasks := []*task.Task{newTask(t), newTask(t, "analysis"), newTask(t, "writing"), newTask(t, "analysis", "writing")}

	for _, e := range executors {
		for load := 0; load < 5; load++ {
			for _, tk := range tasks {
				if e.CanHandle(tk) {
					est := e.Estimate(tk)
					assert.Greater(t, est.Reliability, 0.0, "%s %s", e.ID(), tk)
					assert.False(t, math.IsInf(est.Cost, 1), "%s %s", e.ID(), tk)
				}
			}
			e.Acquire()
		}
	}
}

func TestExecutor_LoadBounds(t *testing.T) {
	e := mustExecutor(t, "e", []Capability{{Name: "a", Cost: 1, Reliability: 1}})

	e.Release()
	assert.Zero(t, e.Load(), "load never goes below zero")

	for i := 0; i < 10; i++ {
		e.Acquire()
	}
	assert.Equal(t, 1.0, e.Load(), "load never exceeds one")

	e.ResetLoad()
	assert.Zero(t, e.Load())
}

func TestExecutor_LoadConcurrent(t *testing.T) {
	e := mustExecutor(t, "e", []Capability{{Name: "a", Cost: 1, Reliability: 1}},
		WithLoadConfig(LoadConfig{Increment: 0.001, Saturation: 0.9, ReliabilityPenalty: 0.3}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Acquire()
			e.Release()
		}()
	}
	wg.Wait()
	assert.InDelta(t, 0, e.Load(), 1e-9)
}

func TestExecutor_Execute(t *testing.T) {
	ctx := context.Background()
	tk := newTask(t)

	failing, err := New("f", nil, PerformerFunc(func(context.Context, *task.Task) (*task.Result, error) {
		return nil, errors.New("model unavailable")
	}))
	require.NoError(t, err)
	_, err = failing.Execute(ctx, tk)
	assert.EqualError(t, err, "model unavailable")

	empty, err := New("n", nil, PerformerFunc(func(context.Context, *task.Task) (*task.Result, error) {
		return nil, nil
	}))
	require.NoError(t, err)
	_, err = empty.Execute(ctx, tk)
	assert.ErrorIs(t, err, ErrNoResult)

	panicky, err := New("p", nil, PerformerFunc(func(context.Context, *task.Task) (*task.Result, error) {
		panic("kaboom")
	}))
	require.NoError(t, err)
	_, err = panicky.Execute(ctx, tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	ok := mustExecutor(t, "ok", nil)
	res, err := ok.Execute(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, "do work", res.Output)
}
