package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo)

	logger.Error("save failed", "error", errors.New("disk full"))
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `err="disk full"`)
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewFile_WritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lectern.log")
	logger, closer := logging.NewFile(logging.FileConfig{Path: path, MaxSizeMB: 1}, slog.LevelInfo)
	logger.Info("hello", "session_id", "s1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session_id=s1")
}
