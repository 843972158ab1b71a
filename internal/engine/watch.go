package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"forgecore/pkg/logging"
)

// addonWatcher watches the addons directory for newly created .jar
// archives and brings each one online through the same
// discover/resolve/instantiate/load/enable pipeline Start uses,
// without disturbing any addon already running. Debounced the same way
// the teacher codebase's filesystem change detector debounces
// rapid-fire edits to the same path.
type addonWatcher struct {
	eng *Engine
	dir string

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*time.Timer
	debounce time.Duration
}

func newAddonWatcher(eng *Engine, dir string) *addonWatcher {
	return &addonWatcher{
		eng:      eng,
		dir:      dir,
		pending:  make(map[string]*time.Timer),
		debounce: 500 * time.Millisecond,
	}
}

// start begins watching dir; it returns immediately after the watch is
// established, running the event loop on its own goroutine until ctx
// is cancelled.
func (w *addonWatcher) start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop(ctx)
	logging.Info("engine", "watching %s for new addon archives", w.dir)
	return nil
}

func (w *addonWatcher) loop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) || filepath.Ext(ev.Name) != ".jar" {
				continue
			}
			w.debounceLoad(ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("engine", "addon directory watch error: %v", err)
		}
	}
}

// debounceLoad coalesces repeated events for the same path (a common
// pattern while a file is still being written) into a single hot-add
// attempt, fired debounce after the most recent event.
func (w *addonWatcher) debounceLoad(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, exists := w.pending[path]; exists {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.eng.hotAddAddon(path)
	})
}
