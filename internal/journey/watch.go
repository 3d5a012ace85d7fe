package journey

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stepwright/internal/logging"
)

// Watcher watches a journeys directory and invokes a callback when a
// journey file settles after editing. Rapid saves are debounced so an
// editor writing in chunks triggers one remap, not five.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dir         string
	onChange    func(ctx context.Context, path string)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	FilesChanged int
	FilesDeleted int
	Triggered    int
	Errors       int
}

// NewWatcher creates a watcher over dir. onChange runs on the watcher
// goroutine once per settled file change.
func NewWatcher(dir string, onChange func(ctx context.Context, path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		dir:         dir,
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		logging.Watch("Failed to create journeys dir %s: %v (continuing)", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		logging.Watch("Initial watch of %s failed: %v", w.dir, err)
	} else {
		logging.Watch("Watching %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		logging.Watch("Error closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// The ticker drains events that settled past the debounce window.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Watch("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isJourneyFile(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.stats.FilesChanged++
		w.debounceMap[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.stats.FilesDeleted++
		delete(w.debounceMap, event.Name)
	}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.stats.Triggered += len(settled)
	w.mu.Unlock()

	for _, path := range settled {
		// The file may be gone again by now.
		if _, err := os.Stat(path); err != nil {
			continue
		}
		logging.Watch("Journey changed: %s", filepath.Base(path))
		w.onChange(ctx, path)
	}
}

func isJourneyFile(path string) bool {
	return strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".journey")
}
