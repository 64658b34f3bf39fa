// Package watch reloads the churn table when its CSV file changes on disk.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 250 * time.Millisecond

// Refresher reloads data when its source changed.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Watcher monitors the directory holding a data file and refreshes the
// registry when that file is written, created or renamed into place.
type Watcher struct {
	path     string
	target   Refresher
	logger   *slog.Logger
	debounce time.Duration
}

// New creates a watcher for path.
func New(path string, target Refresher, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		target:   target,
		logger:   logger,
		debounce: DefaultDebounce,
	}
}

// SetDebounce overrides DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. The goroutine exits when ctx is cancelled.
// The parent directory is watched rather than the file so editors that
// replace the file through a rename are still picked up.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	go w.loop(ctx, watcher)
	w.logger.Info("watching data file", "path", w.path)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			if err := w.target.Refresh(ctx); err != nil {
				w.logger.Warn("reload after file change failed", "path", w.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
