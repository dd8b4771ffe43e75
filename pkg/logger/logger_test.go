package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func useObserved(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := current.Load()
	current.Store(zap.New(core))
	t.Cleanup(func() { current.Store(prev) })
	return logs
}

func TestInit(t *testing.T) {
	require.NoError(t, Init("production", ""))
	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init("development", "warn", zap.String("service", "scamshield")))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, Init("production", "loud"))
}

func TestGet_BeforeInit(t *testing.T) {
	prev := current.Load()
	current.Store(nil)
	t.Cleanup(func() { current.Store(prev) })

	assert.NotNil(t, Get())
	assert.Same(t, Get(), Get())
}

func TestWithContext_AddsCorrelationID(t *testing.T) {
	logs := useObserved(t)

	ctx := ContextWithCorrelationID(context.Background(), "req-123")
	WithContext(ctx).Info("scan done")
	WithContext(context.Background()).Info("no id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-123", entries[0].ContextMap()["correlation_id"])
	_, ok := entries[1].ContextMap()["correlation_id"]
	assert.False(t, ok)
}

func TestLevelHelpers(t *testing.T) {
	logs := useObserved(t)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	require.Equal(t, 4, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[3].Level)
}
