package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnore(t *testing.T) {
	w := New(t.TempDir(), nil, slog.Default())

	tests := []struct {
		path   string
		ignore bool
	}{
		{"pages/start.html", false},
		{"pages/start.json", false},
		{"labyrinth.json", false},
		{"pages/start.sync.json", true},
		{"labyrinth.sync.json", true},
		{".git", true},
		{"pages/.start.html.swp", true},
		{"pages/start.html~", true},
		{"pages/start.swp", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ignore, w.shouldIgnore(tt.path), "path %s", tt.path)
	}
}

func TestWatch_RunsOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o755))

	var runs atomic.Int32
	w := New(dir, func(context.Context) error {
		runs.Add(1)
		return nil
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to install before writing.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "start.html"), []byte("<p>hi</p>"), 0o644))

	assert.Eventually(t, func() bool { return runs.Load() >= 1 },
		5*time.Second, 50*time.Millisecond, "change should trigger a run")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// Engine-written recorded state must not re-trigger a run, or every sync
// would schedule the next.
func TestWatch_IgnoresRecordedState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o755))

	var runs atomic.Int32
	w := New(dir, func(context.Context) error {
		runs.Add(1)
		return nil
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "labyrinth.sync.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "start.sync.json"), []byte("{}"), 0o644))

	// Long enough for a debounce cycle to have fired if it was going to.
	time.Sleep(1500 * time.Millisecond)
	assert.Zero(t, runs.Load())

	cancel()
	<-done
}
