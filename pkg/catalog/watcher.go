package catalog

import (
	"context"
	"path/filepath"
	"time"

	notify "github.com/fsnotify/fsnotify"

	"github.com/switchyard-lab/switchyard/pkg/util"
)

// debounceDelay coalesces the write/rename bursts editors and config
// management tools produce when rewriting the catalog file.
const debounceDelay = 500 * time.Millisecond

// Watcher invokes a callback whenever the catalog file changes on disk.
// The parent directory is watched rather than the file itself so that
// atomic rename-into-place updates are seen.
type Watcher struct {
	path    string
	watcher *notify.Watcher
	onEvent func()
}

// NewWatcher creates a watcher for the given catalog file. onEvent runs on
// the watcher goroutine; callers hand in something cheap (typically a
// reload trigger).
func NewWatcher(path string, onEvent func()) (*Watcher, error) {
	w, err := notify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{path: path, watcher: w, onEvent: onEvent}, nil
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(notify.Write|notify.Create|notify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
			} else {
				debounce.Reset(debounceDelay)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			util.Infof("catalog file %s changed, triggering reload", w.path)
			w.onEvent()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			util.Warnf("catalog watcher: %v", err)
		}
	}
}
