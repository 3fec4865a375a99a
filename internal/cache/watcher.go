package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates cached state when files change outside the engine.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	log      *zap.Logger

	mu      sync.Mutex
	dirs    map[string]bool
	started bool
	done    chan struct{}
}

// NewWatcher creates a watcher that calls onChange with the absolute path of
// every written, created, removed or renamed file.
func NewWatcher(onChange func(path string), log *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:  w,
		onChange: onChange,
		log:      log,
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// Add starts watching dir. Adding the same directory twice is a no-op.
func (w *Watcher) Add(dir string) error {
	dir = key(dir)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.dirs[dir] = true
	return nil
}

// Start dispatches events in the background until ctx is done or the
// watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.log.Debug("external change", zap.String("path", path), zap.String("op", event.Op.String()))
			w.onChange(path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for the dispatch loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	return err
}
