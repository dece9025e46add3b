package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionStart = time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

func TestOpenSessionLog_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "markerview-logs", "nested")

	f, path, err := OpenSessionLog(dir, "markerview", sessionStart)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, filepath.Join(dir, "markerview.20260212_213836.log"), path)
	assert.FileExists(t, path)
}

func TestOpenSessionLog_KeepsPreviousAsOld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "markerview.20260212_213836.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier session\n"), 0644))

	f, got, err := OpenSessionLog(dir, "markerview", sessionStart)
	require.NoError(t, err)
	_, err = f.WriteString("this session\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, path, got)
	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "earlier session\n", string(old))
	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "this session\n", string(cur))
}

func TestOpenSessionLog_DirIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, path, err := OpenSessionLog(blocker, "markerview", sessionStart)
	assert.ErrorContains(t, err, "creating logs directory")
	assert.Equal(t, filepath.Join(blocker, "markerview.20260212_213836.log"), path)
}
