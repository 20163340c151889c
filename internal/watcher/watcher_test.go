package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/loom/internal/watcher"
)

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "jobs.yaml")
	err := os.WriteFile(defPath, []byte("- job:\n    name: j\n"), 0644)
	require.NoError(t, err, "failed to create test file")

	w, err := watcher.New(watcher.Config{
		Paths:       []string{dir},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		err := os.WriteFile(defPath, []byte(fmt.Sprintf("# rev %d\n", i)), 0644)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
		// Expected
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	// No second notification should come quickly
	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
		// Expected - no second notification
	}
}

func TestWatcher_IgnoresEditorTempFiles(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".jobs.yaml.swx")
	err := os.WriteFile(hidden, []byte("initial"), 0644)
	require.NoError(t, err)

	w, err := watcher.New(watcher.Config{
		Paths:       []string{dir},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	err = os.WriteFile(hidden, []byte("changed"), 0644)
	require.NoError(t, err)

	select {
	case <-onChange:
		t.Fatal("should not notify for hidden or temp files")
	case <-time.After(100 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_FilePathWatchesItsDirectory(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(defPath, []byte("[]"), 0644))

	w, err := watcher.New(watcher.Config{
		Paths:       []string{defPath},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	// an include file appearing next to the watched document counts
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.sh"), []byte("echo hi\n"), 0644))

	select {
	case <-onChange:
		// Expected
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification for sibling file creation")
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.Config{
		Paths:       []string{dir},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Stop should not hang or panic
	done := make(chan struct{})
	go func() {
		err := w.Stop()
		assert.NoError(t, err, "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
		// Expected - stop completed successfully
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig([]string{"/defs"})

	assert.Equal(t, []string{"/defs"}, cfg.Paths)
	assert.Equal(t, 1*time.Second, cfg.DebounceDur)
}
