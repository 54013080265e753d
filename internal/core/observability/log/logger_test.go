package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerWritesTypedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.With(String("stage", "main")).Error("handler failed",
		Error(errors.New("boom")),
		Duration("step", 16*time.Millisecond),
		Int("handlers", 3),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "handler failed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "main", fields["stage"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, int64(3), fields["handlers"])
}

func TestLoggerWritesCollectionAndNilErrorFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.Info("game started",
		Strings("stages", []string{"main", "ui"}),
		Bool("inspector", true),
		Float64("rate_hz", 60),
		ErrorWithKey("cause", nil),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, []any{"main", "ui"}, fields["stages"])
	assert.Equal(t, true, fields["inspector"])
	assert.Equal(t, 60.0, fields["rate_hz"])
	assert.NotContains(t, fields, "cause")
}

func TestLoggerLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)
	l.SetLevel(LevelWarn)

	l.Info("dropped")
	l.Warn("kept")

	assert.Equal(t, LevelWarn, l.GetLevel())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}
