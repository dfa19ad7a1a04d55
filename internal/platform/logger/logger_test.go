package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmitsJSONAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("should be filtered")
	assert.Zero(t, buf.Len())

	log.Warn("should appear", "task_id", "job-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "should appear", entry["msg"])
	assert.Equal(t, "job-1", entry["task_id"])
}

func TestNewSetsDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	assert.Equal(t, log, slog.Default())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tc := range tests {
		got, ok := parseLevel(tc.input)
		assert.Equal(t, tc.want, got, "level for %q", tc.input)
		assert.Equal(t, tc.ok, ok, "recognized for %q", tc.input)
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "shouting")

	log.Debug("filtered at info")
	assert.Zero(t, buf.Len())

	log.Info("passes at info")
	assert.Contains(t, buf.String(), "passes at info")
}
