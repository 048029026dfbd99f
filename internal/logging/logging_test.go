package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, GetLevel("ERROR"))
	assert.Equal(t, slog.LevelWarn, GetLevel("warning"))
	assert.Equal(t, slog.LevelDebug, GetLevel("debug"))
	assert.Equal(t, slog.LevelInfo, GetLevel("bogus"))
}

func TestNew(t *testing.T) {
	t.Run("json records carry the component", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "info", "json", "hub")
		require.NoError(t, err)

		logger.Info("variable written", "key", "X_Data")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "hub", rec["component"])
		assert.Equal(t, "X_Data", rec["key"])
		assert.Equal(t, "variable written", rec["msg"])
	})

	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "warn", "text", "hub")
		require.NoError(t, err)

		logger.Info("hidden")
		assert.Empty(t, buf.String())

		logger.Warn("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "info", "xml", "hub")
		assert.Error(t, err)
	})
}
