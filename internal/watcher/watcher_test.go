package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))

	var calls atomic.Int32
	w, err := New(path, func() { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(`{"ASKLENS_WORKER_PORT": 1}`), 0600))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))

	var calls atomic.Int32
	w, err := New(path, func() { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0600))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_StartMissingParent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "settings.json"), func() {})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.Error(t, w.Start())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "settings.json"), func() {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
