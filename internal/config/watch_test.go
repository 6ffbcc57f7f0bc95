package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWatcherReportsEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "applogger.yaml")
	require.NoError(t, os.WriteFile(path, DefaultYAML(), 0o644))

	w, err := NewWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Close()

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	select {
	case changed := <-w.Changes():
		t.Fatalf("unexpected change notice for %s", changed)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("idle_time: 30\n"), 0o644))
	select {
	case changed := <-w.Changes():
		abs, _ := filepath.Abs(path)
		require.Equal(t, abs, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notice")
	}
}
