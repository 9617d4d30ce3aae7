package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "console")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestHelpersWriteFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	LogRequest(l, "census", "GET", "https://api.census.gov/data/2022/acs/acs5", zap.Int("fields", 3))
	LogResponse(l, "census", 200, 1500*time.Millisecond, 12)
	LogError(l, "census", "fetch", errors.New("boom"))
	LogTransform(l, "pipeline", 30, 12, time.Second, zap.Int("year", 2022))
	LogUpsert(l, "archive", 120, 40*time.Millisecond)

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)

	assert.Equal(t, "request", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["fields"])
	assert.Equal(t, int64(1500), entries[1].ContextMap()["duration_ms"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
	assert.Equal(t, int64(12), entries[3].ContextMap()["out"])
	assert.Equal(t, int64(2022), entries[3].ContextMap()["year"])
	assert.Equal(t, "upserted", entries[4].Message)
	assert.Equal(t, int64(120), entries[4].ContextMap()["count"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRequest(nil, "census", "GET", "u")
		LogError(nil, "census", "fetch", errors.New("x"))
	})
}
