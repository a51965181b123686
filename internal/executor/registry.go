package executor

import (
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/concord/internal/task"
)

// Registry holds executors in registration order. Order matters: it breaks
// ties in best-match selection.
type Registry struct {
	mu        sync.RWMutex
	executors []*Executor
	index     map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends executors in order. It fails on duplicate ids without
// registering any of the given executors.
func (r *Registry) Register(executors ...*Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]struct{}, len(executors))
	for _, e := range executors {
		if e == nil {
			return fmt.Errorf("%w: nil executor", ErrInvalidExecutor)
		}
		if _, ok := r.index[e.ID()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateExecutor, e.ID())
		}
		if _, ok := pending[e.ID()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateExecutor, e.ID())
		}
		pending[e.ID()] = struct{}{}
	}

	for _, e := range executors {
		r.index[e.ID()] = len(r.executors)
		r.executors = append(r.executors, e)
	}
	return nil
}

// Get returns the executor with the given id.
func (r *Registry) Get(id string) (*Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.executors[i], true
}

// All returns the executors in registration order.
func (r *Registry) All() []*Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Executor(nil), r.executors...)
}

// Len returns the number of registered executors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

// Candidates returns, in registration order, the executors that can handle t.
func (r *Registry) Candidates(t *task.Task) []*Executor {
	var out []*Executor
	for _, e := range r.All() {
		if e.CanHandle(t) {
			out = append(out, e)
		}
	}
	return out
}

// BestMatch picks the candidate maximizing reliability / max(cost, 1).
// Ties go to the earlier registration. Executors named in exclude are
// skipped. ok is false when no executor can handle t.
func (r *Registry) BestMatch(t *task.Task, exclude ...string) (best *Executor, est Estimate, ok bool) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	bestScore := -1.0
	for _, e := range r.Candidates(t) {
		if _, excluded := skip[e.ID()]; excluded {
			continue
		}
		candidate := e.Estimate(t)
		if score := candidate.Score(); score > bestScore {
			best, est, bestScore = e, candidate, score
		}
	}
	return best, est, best != nil
}

// ByClass returns the first executor with the given class that can handle t.
func (r *Registry) ByClass(class string, t *task.Task) (*Executor, bool) {
	if class == "" {
		return nil, false
	}
	for _, e := range r.All() {
		if e.Class() == class && e.CanHandle(t) {
			return e, true
		}
	}
	return nil, false
}

// ResetLoads clears the load of every executor.
func (r *Registry) ResetLoads() {
	for _, e := range r.All() {
		e.ResetLoad()
	}
}
