// Package logger holds the process-wide zap logger and ties log lines to the
// request that produced them.
package logger

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var current atomic.Pointer[zap.Logger]

// Init builds the global logger. Production gets JSON with ISO8601
// timestamps, anything else the colored console encoder. level overrides the
// environment default when set ("debug", "info", "warn", "error"). fields are
// stamped on every line, typically the service name and version.
func Init(environment, level string, fields ...zap.Field) error {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.Fields(fields...))
	if err != nil {
		return err
	}
	current.Store(l)
	return nil
}

// Get returns the global logger, a development logger before Init
func Get() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l, _ := zap.NewDevelopment()
	current.CompareAndSwap(nil, l)
	return current.Load()
}

// ContextWithCorrelationID stores the request id on ctx
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, correlationID)
}

// CorrelationID returns the id stored by ContextWithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithContext returns the global logger tagged with the request id, if any.
// Scan stages log through this so one scan's lines can be pulled together.
func WithContext(ctx context.Context) *zap.Logger {
	if id := CorrelationID(ctx); id != "" {
		return Get().With(zap.String("correlation_id", id))
	}
	return Get()
}

func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// Sync flushes buffered entries
func Sync() error {
	if l := current.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
