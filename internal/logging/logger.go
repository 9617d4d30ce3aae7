// Package logging builds the zap logger shared by the binaries and the
// request/response helpers the upstream clients log through.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger at the given level. format is "json" (default) or
// "console".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// LogRequest logs an API request being made.
func LogRequest(l *zap.Logger, component, method, url string, fields ...zap.Field) {
	OrNop(l).Debug("request",
		append([]zap.Field{
			zap.String("component", component),
			zap.String("method", method),
			zap.String("url", url),
		}, fields...)...)
}

// LogResponse logs an API response received.
func LogResponse(l *zap.Logger, component string, statusCode int, duration time.Duration, resultCount int) {
	OrNop(l).Debug("response",
		zap.String("component", component),
		zap.Int("status", statusCode),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int("results", resultCount))
}

// LogError logs an error from an API operation.
func LogError(l *zap.Logger, component, operation string, err error) {
	OrNop(l).Warn("operation failed",
		zap.String("component", component),
		zap.String("operation", operation),
		zap.Error(err))
}

// LogTransform logs transformation of data.
func LogTransform(l *zap.Logger, component string, inputCount, outputCount int, duration time.Duration, fields ...zap.Field) {
	OrNop(l).Info("transformed",
		append([]zap.Field{
			zap.String("component", component),
			zap.Int("in", inputCount),
			zap.Int("out", outputCount),
			zap.Int64("duration_ms", duration.Milliseconds()),
		}, fields...)...)
}

// LogUpsert logs database write operations.
func LogUpsert(l *zap.Logger, component string, count int, duration time.Duration) {
	OrNop(l).Info("upserted",
		zap.String("component", component),
		zap.Int("count", count),
		zap.Int64("duration_ms", duration.Milliseconds()))
}
