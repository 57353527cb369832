package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/debug"
)

// Watcher keeps the index current as files change on disk. Events are
// debounced per path so editors that write in bursts trigger one reindex.
type Watcher struct {
	cfg *config.Config
	ix  *Indexer

	// OnUpdate, when set, runs after a changed file has been reindexed.
	// The server uses it to refresh an affected compilation.
	OnUpdate func(path string)

	mu      sync.Mutex
	pending map[string]*time.Timer
	fw      *fsnotify.Watcher
}

// NewWatcher creates a watcher feeding the given indexer.
func NewWatcher(cfg *config.Config, ix *Indexer) *Watcher {
	return &Watcher{cfg: cfg, ix: ix, pending: make(map[string]*time.Timer)}
}

// Start watches the workspace root recursively until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fw = fw
	if err := w.addRecursive(w.ix.Root()); err != nil {
		fw.Close()
		return err
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				w.handleEvent(ev)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				debug.LogIndexing("watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.excludedDir(filepath.Base(ev.Name)) {
				_ = w.addRecursive(ev.Name)
			}
			return
		}
	}
	if !w.cfg.IsSourceFile(ev.Name) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.ix.RemoveFile(ev.Name)
		debug.LogIndexing("removed %s from index", ev.Name)
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.debounce(ev.Name)
	}
}

// debounce schedules a reindex for path, resetting the timer on repeated
// writes within the configured window.
func (w *Watcher) debounce(path string) {
	delay := time.Duration(w.cfg.Index.WatchDebounceMs) * time.Millisecond
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(delay)
		return
	}
	w.pending[path] = time.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if err := w.ix.ReindexFile(path); err != nil {
			debug.LogIndexing("reindex of %s failed: %v", path, err)
			return
		}
		if w.OnUpdate != nil {
			w.OnUpdate(path)
		}
	})
}

func (w *Watcher) excludedDir(name string) bool {
	for _, d := range w.cfg.Index.ExcludeDirs {
		if d == name {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}
