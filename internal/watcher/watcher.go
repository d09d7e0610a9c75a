package watcher

import (
	"context"
	"path/filepath"

	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Event is a change to a followed recorder file.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher follows recorder output files using OS-level notifications.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *logging.Logger
	Events chan Event
	paths  []string
}

// New creates a Watcher for the files matching the given glob patterns.
// Patterns are expanded once; files that appear later are not picked up.
func New(patterns []string, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		logger: logger,
		Events: make(chan Event, 256),
	}

	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := expandGlob(pattern)
		if err != nil {
			logger.Warn("failed to expand pattern", "pattern", pattern, "error", err)
			continue
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] {
				continue
			}
			if err := fsw.Add(abs); err != nil {
				logger.Warn("cannot watch file", "path", abs, "error", err)
				continue
			}
			seen[abs] = true
			w.paths = append(w.paths, abs)
		}
	}

	return w, nil
}

// Start forwards file events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.Events <- Event{Path: ev.Name, Op: ev.Op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Paths returns the absolute paths being followed.
func (w *Watcher) Paths() []string {
	return w.paths
}

// ReWatch adds a path back after the file was recreated.
func (w *Watcher) ReWatch(path string) error {
	return w.fsw.Add(path)
}

// expandGlob resolves a pattern such as logs/**/*.log to existing files.
func expandGlob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
}
