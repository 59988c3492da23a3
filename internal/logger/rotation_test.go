package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates file and directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "subdir", "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("picks up existing size", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		require.NoError(t, os.WriteFile(logFile, []byte("12345"), 0o644))

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		assert.Equal(t, int64(5), rw.currentSize)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	data := []byte("test log message\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "test log message\n", string(content))
}

func TestRotatingWriterRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)
	rw.maxSize = 100

	first := []byte(strings.Repeat("a", 80))
	second := []byte(strings.Repeat("b", 80))

	_, err = rw.Write(first)
	require.NoError(t, err)
	_, err = rw.Write(second)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	rotated, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	require.Len(t, rotated, 1)

	old, err := os.ReadFile(rotated[0])
	require.NoError(t, err)
	assert.Equal(t, string(first), string(old))

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, string(second), string(current))
}

func TestRotatingWriterCompressesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, true)
	require.NoError(t, err)
	rw.maxSize = 10

	_, err = rw.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("next"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	gz, err := filepath.Glob(logFile + ".*.gz")
	require.NoError(t, err)
	assert.Len(t, gz, 1)
}

func TestRotatingWriterClose(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)

	assert.NoError(t, rw.Close())
	assert.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0o644))

	require.NoError(t, compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)

	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")

	oldFile := logFile + ".20200101-120000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0o644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := logFile + ".20990101-120000"
	require.NoError(t, os.WriteFile(recentFile, []byte("recent log"), 0o644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}
