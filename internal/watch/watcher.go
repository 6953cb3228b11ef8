// Package watch re-runs a sync whenever author-edited files in the
// content tree change. Engine-written recorded state files are ignored
// so a run does not trigger itself.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is how often pending filesystem events are checked so
// rapid editor writes collapse into a single run.
const debounceInterval = 500 * time.Millisecond

// quietPeriod is how long a file must be quiet before a run triggers.
const quietPeriod = 300 * time.Millisecond

// Runner is the sync entry point the watcher invokes. Per-entity
// failures inside a run are already handled; only fatal errors surface.
type Runner func(ctx context.Context) error

// Watcher monitors a content tree and triggers runs on change.
type Watcher struct {
	root    string
	run     Runner
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// New creates a watcher over the tree rooted at root.
func New(root string, run Runner, logger *slog.Logger) *Watcher {
	return &Watcher{root: root, run: run, logger: logger}
}

// Watch blocks until the context is cancelled, running a sync after each
// debounced batch of changes. A failed run is logged; watching continues
// so the next save retries.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	w.watcher = watcher
	defer watcher.Close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching content tree: %w", err)
	}

	w.logger.Info("watching content tree", slog.String("dir", w.root))

	pending := make(map[string]time.Time)

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()

				// New directories need watching too. Lstat so symlinked
				// directories pointing outside the tree stay unwatched.
				if event.Has(fsnotify.Create) {
					info, err := os.Lstat(event.Name)
					if err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
						_ = w.addRecursive(event.Name)
					}
				}
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
				_ = watcher.Remove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}

			now := time.Now()
			settled := true
			for _, t := range pending {
				if now.Sub(t) < quietPeriod {
					settled = false
					break
				}
			}
			if !settled {
				continue
			}

			w.logger.Info("content changed, running sync", slog.Int("changes", len(pending)))
			pending = make(map[string]time.Time)

			if err := w.run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("sync run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		if d.Type()&os.ModeSymlink != 0 {
			return filepath.SkipDir
		}

		return w.watcher.Add(path)
	})
}

// shouldIgnore filters events that must not trigger a run: hidden files,
// editor temp files, and the engine's own recorded state writes.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}

	// Recorded state is written by the engine during every run.
	if strings.HasSuffix(base, ".sync.json") {
		return true
	}

	return false
}
