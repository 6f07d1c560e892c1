package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewJSONTo_RenamesError(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONTo(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Warn("classifier failed", "error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"err":"boom"`)
	assert.NotContains(t, out, `"error"`)
}

func TestNewRedacted(t *testing.T) {
	var buf bytes.Buffer
	redact := func(s string) string { return strings.ReplaceAll(s, "secret", "[x]") }
	logger := logging.NewRedacted(&buf, slog.LevelInfo, true, redact)

	logger.Error("store failed: secret", "error", errors.New("write secret failed"), "id", "secret-1", "n", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "store failed: [x]", line["msg"])
	assert.Equal(t, "write [x] failed", line["err"])
	assert.Equal(t, "[x]-1", line["id"])
	assert.Equal(t, float64(3), line["n"])
}
