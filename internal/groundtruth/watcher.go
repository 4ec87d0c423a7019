package groundtruth

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// #region watcher

// Watcher keeps the most recent snapshot in memory and refreshes it whenever
// the emulator rewrites the file. The directory is watched rather than the
// file so atomic replace-by-rename is picked up.
type Watcher struct {
	path string
	log  *zap.Logger

	mu     sync.RWMutex
	latest *Position

	fs   *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher loads the current snapshot (if any) and starts watching path.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path: abs,
		log:  log.Named("groundtruth"),
		fs:   fw,
		done: make(chan struct{}),
	}
	w.reload()
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.reload()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.set(nil)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	p, err := ReadFile(w.path)
	if err != nil {
		w.log.Debug("snapshot unavailable", zap.Error(err))
	}
	w.set(p)
}

func (w *Watcher) set(p *Position) {
	w.mu.Lock()
	w.latest = p
	w.mu.Unlock()
}

// Position returns a copy of the latest snapshot, or nil when unknown.
func (w *Watcher) Position() *Position {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.latest == nil {
		return nil
	}
	p := *w.latest
	return &p
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

// #endregion watcher
