// Package knowledge provides optional live reload of the knowledge document.
package knowledge

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the knowledge document on disk and rebuilds the snapshot
// when the file changes. The new Store is handed to the swap callback; readers
// holding the old snapshot are unaffected, so no locking is needed beyond the
// caller's atomic pointer swap.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	swap    func(*Store)
	hook    func()
}

// SetSwapHook registers an additional callback invoked after each snapshot
// swap, e.g. to purge caches derived from the previous snapshot. Must be set
// before Run starts.
func (w *Watcher) SetSwapHook(hook func()) {
	w.hook = hook
}

// NewWatcher creates a watcher for the given document path. The swap callback
// is invoked with each successfully rebuilt Store.
func NewWatcher(path string, swap func(*Store)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode would go stale.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, path: path, swap: swap}, nil
}

// Run processes file events until the context is cancelled. Reload failures
// are logged and the previous snapshot stays in effect.
func (w *Watcher) Run(ctx context.Context) {
	slog.Info("knowledge watcher started", "path", w.path)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("knowledge watcher stopping", "path", w.path)
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			st, err := LoadFile(w.path)
			if err != nil {
				slog.Error("knowledge reload failed, keeping previous snapshot", "error", err, "path", w.path)
				continue
			}
			w.swap(st)
			if w.hook != nil {
				w.hook()
			}
			slog.Info("knowledge snapshot reloaded", "path", w.path, "flows", len(st.flows))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("knowledge watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
