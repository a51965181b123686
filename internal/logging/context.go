// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Correlation field keys.
const (
	FieldTaskID     = "task.id"
	FieldDecisionID = "decision.id"
	FieldExecutorID = "executor.id"
)

// maxIDLen bounds correlation ids copied into every log line.
const maxIDLen = 128

type taskCtxKey struct{}
type decisionCtxKey struct{}
type executorCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := TaskIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String(FieldTaskID, id))
	}
	if id := DecisionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String(FieldDecisionID, id))
	}
	if id := ExecutorIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String(FieldExecutorID, id))
	}
	return fields
}

// WithTaskID adds a task id to context. Empty ids leave ctx unchanged.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withID(ctx, taskCtxKey{}, id)
}

// TaskIDFromContext extracts the task id from context.
func TaskIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, taskCtxKey{})
}

// WithDecisionID adds a decision id to context.
func WithDecisionID(ctx context.Context, id string) context.Context {
	return withID(ctx, decisionCtxKey{}, id)
}

// DecisionIDFromContext extracts the decision id from context.
func DecisionIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, decisionCtxKey{})
}

// WithExecutorID adds an executor id to context.
func WithExecutorID(ctx context.Context, id string) context.Context {
	return withID(ctx, executorCtxKey{}, id)
}

// ExecutorIDFromContext extracts the executor id from context.
func ExecutorIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, executorCtxKey{})
}

// Task ids come from callers, so they are truncated rather than rejected.
func withID(ctx context.Context, key any, id string) context.Context {
	if id == "" {
		return ctx
	}
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return context.WithValue(ctx, key, id)
}

func idFromContext(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
