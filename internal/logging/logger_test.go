package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, cfg, logger.config)

	bad := NewDefaultConfig()
	bad.Format = "xml"
	_, err = NewLogger(bad, nil)
	assert.Error(t, err)
}

func TestNewLogger_OTELOnlyWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{Stream: StreamNone, OTEL: true}

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err, "otel output without a provider leaves no core")
}

func TestNewLogger_StreamNone(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{Stream: StreamNone}
	require.NoError(t, cfg.Validate())

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(zapcore.ErrorLevel))
	logger.Error(context.Background(), "discarded")
	assert.NoError(t, logger.Sync())
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}
	ctx := WithTaskID(context.Background(), "t1")

	tests := []struct {
		name  string
		log   func(context.Context, string, ...zap.Field)
		level zapcore.Level
	}{
		{"trace", logger.Trace, TraceLevel},
		{"debug", logger.Debug, zapcore.DebugLevel},
		{"info", logger.Info, zapcore.InfoLevel},
		{"warn", logger.Warn, zapcore.WarnLevel},
		{"error", logger.Error, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.log(ctx, tt.name+" message", zap.String("key", "val"))

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.name+" message", logs[0].Message)
			assert.Equal(t, "t1", logs[0].ContextMap()[FieldTaskID])
			assert.Equal(t, "val", logs[0].ContextMap()["key"])
		})
	}
}

func TestLogger_TraceSkippedWhenDisabled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Trace(context.Background(), "noisy")
	assert.Zero(t, observed.Len())
	assert.False(t, logger.Enabled(TraceLevel))
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("orchestrator").With(zap.String("component", "orchestrator"))

	child.Info(context.Background(), "child message")
	tl.Info(context.Background(), "parent message")

	entries := tl.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "orchestrator", entries[0].LoggerName)
	assert.Equal(t, "orchestrator", entries[0].ContextMap()["component"])
	assert.NotContains(t, entries[1].ContextMap(), "component")
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	require.NotNil(t, l)
	l.Info(context.Background(), "discarded")
	assert.NoError(t, l.Sync())

	tl := NewTestLogger()
	assert.Same(t, tl.Logger, OrNop(tl.Logger))
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("WARN")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestEncodeLevel(t *testing.T) {
	enc := &sliceArrayEncoder{}
	encodeLevel(TraceLevel, enc)
	encodeLevel(zapcore.InfoLevel, enc)
	assert.Equal(t, []string{"trace", "info"}, enc.elems)
}

type sliceArrayEncoder struct {
	zapcore.PrimitiveArrayEncoder
	elems []string
}

func (s *sliceArrayEncoder) AppendString(v string) { s.elems = append(s.elems, v) }
