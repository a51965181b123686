// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Stream output (stderr by default) plus an optional OpenTelemetry bridge
//   - Automatic context field injection (trace_id, task.id, decision.id, executor.id)
//   - Secret redaction by field name and value pattern
//   - Per-level sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithTaskID(ctx, t.ID())
//	logger.Info(ctx, "subtask dropped", zap.String("reason", "no capable executor"))
//
// Components accept a nil *Logger and substitute a nop logger (OrNop).
//
// # Configuration Precedence
//
//  1. Environment variables (CONCORD_LOGGING_*)
//  2. File (config.yaml)
//  3. Defaults (NewDefaultConfig)
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	component := New(..., tl.Logger)
//	tl.AssertLogged(t, zapcore.WarnLevel, "subtask dropped")
//	tl.AssertField(t, "subtask dropped", "task.id", "t1-sub-2")
package logging
