// Package executor models the units that perform tasks: their declared
// capabilities, the coarse load signal used for admission control, and the
// ordered registry the orchestrator and policy manager select from.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/fyrsmithlabs/concord/internal/task"
)

// Errors for executor construction and registration.
var (
	ErrInvalidCapability = errors.New("invalid capability")
	ErrInvalidExecutor   = errors.New("invalid executor")
	ErrDuplicateExecutor = errors.New("executor already registered")
	ErrNoResult          = errors.New("executor returned no result")
)

// Capability is a named skill with a relative cost (1-10) and a
// reliability score (0-1). Capabilities never change after construction.
type Capability struct {
	Name        string  `json:"name" yaml:"name" koanf:"name"`
	Cost        float64 `json:"cost" yaml:"cost" koanf:"cost"`
	Reliability float64 `json:"reliability" yaml:"reliability" koanf:"reliability"`
}

// Validate checks the capability ranges.
func (c Capability) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCapability)
	}
	if c.Cost < 1 || c.Cost > 10 {
		return fmt.Errorf("%w: %s cost must be between 1 and 10, got %v", ErrInvalidCapability, c.Name, c.Cost)
	}
	if c.Reliability < 0 || c.Reliability > 1 {
		return fmt.Errorf("%w: %s reliability must be between 0 and 1, got %v", ErrInvalidCapability, c.Name, c.Reliability)
	}
	return nil
}

// Estimate is the load-adjusted cost and reliability of running a task.
type Estimate struct {
	Cost        float64 `json:"cost"`
	Reliability float64 `json:"reliability"`
}

// Unusable is returned for tasks no declared capability matches.
var Unusable = Estimate{Cost: math.Inf(1), Reliability: 0}

// Score is the best-match heuristic: reliability / max(cost, 1).
func (e Estimate) Score() float64 {
	if math.IsInf(e.Cost, 1) || e.Reliability <= 0 {
		return 0
	}
	return e.Reliability / math.Max(e.Cost, 1)
}

// Performer is the external collaborator that actually does the work.
// Implementations may fail by returning an error.
type Performer interface {
	Perform(ctx context.Context, t *task.Task) (*task.Result, error)
}

// PerformerFunc adapts a function to Performer.
type PerformerFunc func(ctx context.Context, t *task.Task) (*task.Result, error)

// Perform implements Performer.
func (f PerformerFunc) Perform(ctx context.Context, t *task.Task) (*task.Result, error) {
	return f(ctx, t)
}

// LoadConfig tunes the load signal.
type LoadConfig struct {
	// Increment is added when a task starts and removed when it finishes.
	Increment float64 `koanf:"increment" json:"increment"`
	// Saturation is the load at or above which CanHandle refuses tasks.
	Saturation float64 `koanf:"saturation" json:"saturation"`
	// ReliabilityPenalty scales how much load degrades reliability.
	ReliabilityPenalty float64 `koanf:"reliability_penalty" json:"reliability_penalty"`
}

// DefaultLoadConfig returns the standard load parameters.
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{
		Increment:          0.2,
		Saturation:         0.9,
		ReliabilityPenalty: 0.3,
	}
}

// Validate checks the load parameters.
func (c LoadConfig) Validate() error {
	if c.Increment <= 0 || c.Increment > 1 {
		return fmt.Errorf("load increment must be in (0,1], got %v", c.Increment)
	}
	if c.Saturation <= 0 || c.Saturation > 1 {
		return fmt.Errorf("load saturation must be in (0,1], got %v", c.Saturation)
	}
	if c.ReliabilityPenalty < 0 || c.ReliabilityPenalty >= 1 {
		return fmt.Errorf("load reliability penalty must be in [0,1), got %v", c.ReliabilityPenalty)
	}
	return nil
}

// Option configures an Executor.
type Option func(*Executor)

// WithClass tags the executor with a routing class, e.g. "orchestrator".
func WithClass(class string) Option {
	return func(e *Executor) { e.class = class }
}

// WithLoadConfig overrides the load parameters.
func WithLoadConfig(cfg LoadConfig) Option {
	return func(e *Executor) { e.load = cfg }
}

// Executor couples a Performer with its declared capabilities and its
// current load.
type Executor struct {
	id        string
	class     string
	caps      []Capability
	performer Performer
	load      LoadConfig

	mu      sync.Mutex
	current float64
	active  bool
}

// New creates an active executor with zero load.
func New(id string, caps []Capability, performer Performer, opts ...Option) (*Executor, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidExecutor)
	}
	if performer == nil {
		return nil, fmt.Errorf("%w: %s has no performer", ErrInvalidExecutor, id)
	}
	seen := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("executor %s: %w", id, err)
		}
		if _, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("%w: executor %s declares %s twice", ErrInvalidCapability, id, c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	e := &Executor{
		id:        id,
		caps:      append([]Capability(nil), caps...),
		performer: performer,
		load:      DefaultLoadConfig(),
		active:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.load.Validate(); err != nil {
		return nil, fmt.Errorf("executor %s: %w", id, err)
	}
	return e, nil
}

// ID returns the executor identifier.
func (e *Executor) ID() string { return e.id }

// Class returns the routing class, empty when unset.
func (e *Executor) Class() string { return e.class }

// Capabilities returns a copy of the declared capabilities.
func (e *Executor) Capabilities() []Capability {
	return append([]Capability(nil), e.caps...)
}

// Load returns the current load in [0,1].
func (e *Executor) Load() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Active reports whether the executor accepts tasks.
func (e *Executor) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetActive marks the executor active or inactive.
func (e *Executor) SetActive(active bool) {
	e.mu.Lock()
	e.active = active
	e.mu.Unlock()
}

// matching returns the capabilities relevant to t: those named in its
// requirements, or all of them when t requires none. ok is false when a
// required capability is missing.
func (e *Executor) matching(t *task.Task) (matched []Capability, ok bool) {
	required := t.RequiredCapabilities()
	if len(required) == 0 {
		return e.caps, len(e.caps) > 0
	}
	byName := make(map[string]Capability, len(e.caps))
	for _, c := range e.caps {
		byName[c.Name] = c
	}
	ok = true
	for _, name := range required {
		c, found := byName[name]
		if !found {
			ok = false
			continue
		}
		matched = append(matched, c)
	}
	return matched, ok
}

func baseEstimate(matched []Capability) Estimate {
	if len(matched) == 0 {
		return Unusable
	}
	var cost, rel float64
	for _, c := range matched {
		cost += c.Cost
		rel += c.Reliability
	}
	n := float64(len(matched))
	return Estimate{Cost: cost / n, Reliability: rel / n}
}

// CanHandle reports whether every required capability is declared, the
// executor is active, its load is below saturation, and the matching
// capabilities have non-zero reliability.
func (e *Executor) CanHandle(t *task.Task) bool {
	matched, ok := e.matching(t)
	if !ok || len(matched) == 0 {
		return false
	}
	e.mu.Lock()
	active, load := e.active, e.current
	e.mu.Unlock()
	if !active || load >= e.load.Saturation {
		return false
	}
	return baseEstimate(matched).Reliability > 0
}

// Estimate averages cost and reliability over the capabilities matching t,
// then adjusts for load: cost *= 1+load, reliability *= 1-penalty*load.
// With no match it returns Unusable.
func (e *Executor) Estimate(t *task.Task) Estimate {
	matched, _ := e.matching(t)
	est := baseEstimate(matched)
	if math.IsInf(est.Cost, 1) {
		return est
	}
	load := e.Load()
	est.Cost *= 1 + load
	est.Reliability *= 1 - e.load.ReliabilityPenalty*load
	return est
}

// Acquire records the start of a task and returns the new load.
func (e *Executor) Acquire() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = math.Min(1, e.current+e.load.Increment)
	return e.current
}

// Release records the end of a task and returns the new load.
func (e *Executor) Release() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = math.Max(0, e.current-e.load.Increment)
	// Clear float residue so repeated acquire/release settles at zero.
	if e.current < 1e-9 {
		e.current = 0
	}
	return e.current
}

// ResetLoad sets the load back to zero.
func (e *Executor) ResetLoad() {
	e.mu.Lock()
	e.current = 0
	e.mu.Unlock()
}

// Execute runs the performer. A panic inside the performer is returned as
// an error, as is a nil result.
func (e *Executor) Execute(ctx context.Context, t *task.Task) (res *task.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("executor %s panicked: %v", e.id, r)
		}
	}()

	res, err = e.performer.Perform(ctx, t)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNoResult
	}
	return res, nil
}
