package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobalLevel(t *testing.T) {
	t.Helper()
	level := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })
}

func TestNew(t *testing.T) {
	restoreGlobalLevel(t)

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("session_id", "abc").Msg("Turn completed")
		assert.Contains(t, buf.String(), `"session_id":"abc"`)
		assert.Contains(t, buf.String(), `"message":"Turn completed"`)
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "copilot.log")

		logger, err := New(Config{Level: "debug", File: logFile, MaxSize: 10})
		require.NoError(t, err)

		logger.Debug().Msg("written to file")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "written to file")
	})

	t.Run("console and file", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "copilot.log")

		logger, err := New(Config{Level: "info", Console: true, Output: &buf, File: logFile})
		require.NoError(t, err)

		logger.Info().Msg("both")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "both")
		assert.Contains(t, buf.String(), "both")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "loud", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		assert.Equal(t, zerolog.InfoLevel, logger.Level())
		logger.Debug().Msg("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf, Redaction: true})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("key", "gsk_abcdefghijklmnopqrstuvwxyz0123").Msg("Loaded key")
		assert.Contains(t, buf.String(), "[REDACTED]")
		assert.NotContains(t, buf.String(), "gsk_abcdefghij")
	})
}

func TestSetLevel(t *testing.T) {
	restoreGlobalLevel(t)

	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Console: true, Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info().Msg("before")
	assert.NotContains(t, buf.String(), "before")

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, zerolog.DebugLevel, logger.Level())

	logger.Debug().Msg("after")
	assert.Contains(t, buf.String(), "after")

	assert.Error(t, logger.SetLevel("verbose"))
	assert.Equal(t, zerolog.DebugLevel, logger.Level())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"nope", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}

func TestLoggerWith(t *testing.T) {
	restoreGlobalLevel(t)

	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	child := logger.With().Str("component", "gateway").Logger()
	child.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"gateway"`)
}
