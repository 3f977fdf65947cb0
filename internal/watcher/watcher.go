package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/rkuchma96/rcoffee/internal/domain"
	"github.com/rkuchma96/rcoffee/internal/logger"
)

// Notify is called once per observed filesystem event. The watcher is a
// coarse change signal: it reports that something changed under the
// subtree, never what.
type Notify func()

// Watcher observes a local subtree recursively and raises a coarse change
// notification for every create, write, remove and rename under it.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	notify  Notify

	// Errors carries non-fatal runtime watch errors; consumers that ignore
	// it still get them logged
	Errors chan error
}

// New creates a watcher over root. The root must exist and be a directory;
// failing to establish the watch is fatal, since no sync can proceed safely
// without change detection.
func New(root string, notify Notify) (*Watcher, error) {
	if notify == nil {
		return nil, fmt.Errorf("notify callback cannot be nil")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWatchInit, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLocalPathMissing, absRoot)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrWatchInit, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDirectory, absRoot)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWatchInit, err)
	}

	w := &Watcher{
		root:    absRoot,
		watcher: fsw,
		notify:  notify,
		Errors:  make(chan error, 16),
	}

	if err := w.addRecursive(absRoot); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrWatchInit, err)
	}

	return w, nil
}

// Root returns the watched directory
func (w *Watcher) Root() string {
	return w.root
}

// Run forwards filesystem events as change notifications until the context
// is cancelled or the underlying watch stops delivering.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("%w: event stream closed", domain.ErrWatchInit)
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("%w: error stream closed", domain.ErrWatchInit)
			}
			// Transient OS-level watch errors must not silently stop the
			// process; surface them and keep watching.
			logger.Get().Warn("watch error", "error", err)
			select {
			case w.Errors <- err:
			default:
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleEvent turns one fsnotify event into a change notification and keeps
// the recursive watch set in step with directory creation and removal.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod-only events carry no content change
	if event.Op == fsnotify.Chmod {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Get().Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
		}
	}
	// Removed or renamed directories are dropped by fsnotify itself.

	logger.Get().Info("local changes detected", "path", event.Name, "op", event.Op.String())
	w.notify()
}

// addRecursive watches dir and every directory below it
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("add watch %s: %w", path, err)
			}
			logger.Get().Debug("watching", "dir", path)
		}
		return nil
	})
}
