package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/task"
)

// HookType identifies an observable event.
type HookType string

const (
	HookQueued        = HookType(task.StateQueued)
	HookPreValidated  = HookType(task.StatePreValidated)
	HookRunning       = HookType(task.StateRunning)
	HookPostValidated = HookType(task.StatePostValidated)
	HookCompleted     = HookType(task.StateCompleted)
	HookFailed        = HookType(task.StateFailed)

	// HookDecisionRecorded fires after a decision is appended to history.
	HookDecisionRecorded HookType = "decision_recorded"

	// HookOutcomeEvaluated fires after an outcome evaluation is stored.
	HookOutcomeEvaluated HookType = "outcome_evaluated"
)

// ForState maps a task lifecycle state to its hook type.
func ForState(s task.State) HookType {
	return HookType(s)
}

// Event is passed to handlers.
type Event struct {
	Type       HookType
	TaskID     string
	ExecutorID string
	DecisionID string
	// Detail is a short human-readable note, e.g. the strategy of a decision
	// or the error of a failed task.
	Detail string
	At     time.Time
}

// HookHandler handles a hook event.
type HookHandler func(ctx context.Context, ev Event) error

// HookManager manages lifecycle hooks. A nil *HookManager is valid and
// ignores every event.
type HookManager struct {
	config *Config
	logger *logging.Logger

	mu       sync.RWMutex
	handlers map[HookType][]HookHandler
}

// NewHookManager creates a new hook manager. A nil config uses defaults.
func NewHookManager(config *Config, logger *logging.Logger) *HookManager {
	if config == nil {
		config = DefaultConfig()
	}
	return &HookManager{
		config:   config,
		logger:   logging.OrNop(logger).Named("hooks"),
		handlers: make(map[HookType][]HookHandler),
	}
}

// RegisterHandler registers a handler for a hook type.
func (h *HookManager) RegisterHandler(hookType HookType, handler HookHandler) {
	if handler == nil {
		return
	}
	h.mu.Lock()
	h.handlers[hookType] = append(h.handlers[hookType], handler)
	h.mu.Unlock()
}

// Execute runs every handler registered for ev.Type in registration order.
// A failing or panicking handler does not stop the rest; all failures are
// returned joined.
func (h *HookManager) Execute(ctx context.Context, ev Event) error {
	if h == nil || !h.config.Enabled {
		return nil
	}
	h.mu.RLock()
	handlers := append([]HookHandler(nil), h.handlers[ev.Type]...)
	h.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	var errs []error
	for i, handler := range handlers {
		if err := h.call(ctx, handler, ev); err != nil {
			errs = append(errs, fmt.Errorf("hook %s[%d] failed: %w", ev.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

// Fire is Execute for callers that must not fail: errors are logged.
func (h *HookManager) Fire(ctx context.Context, ev Event) {
	if err := h.Execute(ctx, ev); err != nil {
		h.logger.Warn(ctx, "hook failed",
			zap.String("hook", string(ev.Type)),
			zap.String("task_id", ev.TaskID),
			zap.Error(err),
		)
	}
}

func (h *HookManager) call(ctx context.Context, handler HookHandler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if d := h.config.Timeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return handler(ctx, ev)
}

// Config returns the hook configuration.
func (h *HookManager) Config() *Config {
	return h.config
}
