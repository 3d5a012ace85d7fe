package journey

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/fsnotify/fsnotify"
)

// changeCollector records callback invocations.
type changeCollector struct {
	mu    sync.Mutex
	paths []string
}

func (c *changeCollector) onChange(ctx context.Context, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *changeCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcherTriggersOncePerSettledEdit(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	col := &changeCollector{}
	w, err := NewWatcher(dir, col.onChange)
	if err != nil {
		t.Fatal(err)
	}
	w.debounceDur = 50 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsWatching() {
		t.Fatal("watcher not running after Start")
	}

	// An editor saving in chunks: several writes in quick succession.
	path := filepath.Join(dir, "checkout.md")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("## Steps\n\n- user clicks \"Go\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if !waitFor(t, 3*time.Second, func() bool { return col.count() >= 1 }) {
		t.Fatalf("callback never fired; stats = %+v", w.Stats())
	}
	// Give the drain ticker a chance to misfire, then confirm it didn't.
	time.Sleep(300 * time.Millisecond)
	if got := col.count(); got != 1 {
		t.Errorf("callback fired %d times, want 1", got)
	}
	if s := w.Stats(); s.Triggered != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestWatcherIgnoresNonJourneyFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	col := &changeCollector{}
	w, err := NewWatcher(dir, col.onChange)
	if err != nil {
		t.Fatal(err)
	}
	w.debounceDur = 50 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)
	if got := col.count(); got != 0 {
		t.Errorf("callback fired %d times for a .txt file", got)
	}
}

func TestWatcherDeleteBeforeSettleSkipsCallback(t *testing.T) {
	w := &Watcher{
		debounceMap: make(map[string]time.Time),
		debounceDur: time.Millisecond,
	}
	called := 0
	w.onChange = func(ctx context.Context, path string) { called++ }

	gone := filepath.Join(t.TempDir(), "gone.md")
	w.handleEvent(fsnotify.Event{Name: gone, Op: fsnotify.Write})

	time.Sleep(5 * time.Millisecond)
	w.processDebounced(context.Background())
	if called != 0 {
		t.Errorf("callback fired for a file that no longer exists")
	}
	if w.Stats().Triggered != 1 {
		t.Errorf("stats = %+v", w.Stats())
	}
}

func TestWatcherRemoveEventClearsPending(t *testing.T) {
	w := &Watcher{
		debounceMap: make(map[string]time.Time),
		debounceDur: time.Millisecond,
	}
	w.handleEvent(fsnotify.Event{Name: "a.md", Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: "a.md", Op: fsnotify.Remove})

	if len(w.debounceMap) != 0 {
		t.Errorf("debounce map = %v", w.debounceMap)
	}
	s := w.Stats()
	if s.FilesChanged != 1 || s.FilesDeleted != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(t.TempDir(), func(ctx context.Context, path string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if w.IsWatching() {
		t.Error("still watching after Stop")
	}
}

func TestIsJourneyFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"checkout.md", true},
		{"login.journey", true},
		{"notes.txt", false},
		{"journey.md.bak", false},
	}
	for _, tt := range tests {
		if got := isJourneyFile(tt.path); got != tt.want {
			t.Errorf("isJourneyFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
