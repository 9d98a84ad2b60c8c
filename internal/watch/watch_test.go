package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const settle = 50 * time.Millisecond

func startWatcher(t *testing.T, match func(string) bool) (dir string, got <-chan string, w *Watcher) {
	t.Helper()

	dir = t.TempDir()
	w, err := New(Config{Dir: dir, Settle: settle, Match: match})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	paths := make(chan string, 8)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		w.Run(ctx, func(path string) { paths <- path })
	}()

	t.Cleanup(func() {
		cancel()
		<-stopped
		w.Close()
	})
	return dir, paths, w
}

func expectPath(t *testing.T, got <-chan string, want string) {
	t.Helper()
	select {
	case path := <-got:
		if path != want {
			t.Errorf("handled %q, want %q", path, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectNothing(t *testing.T, got <-chan string) {
	t.Helper()
	select {
	case path := <-got:
		t.Errorf("unexpected handled path %q", path)
	case <-time.After(4 * settle):
	}
}

func TestNew_NoDir(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoDir) {
		t.Errorf("New() error = %v, want ErrNoDir", err)
	}
}

func TestNew_MissingDir(t *testing.T) {
	if _, err := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestWatcher_HandlesSettledFile(t *testing.T) {
	dir, got, _ := startWatcher(t, nil)

	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}

	expectPath(t, got, path)
}

func TestWatcher_CoalescesWrites(t *testing.T) {
	dir, got, _ := startWatcher(t, nil)

	path := filepath.Join(dir, "clip.mp4")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		f.Write([]byte("chunk"))
		time.Sleep(settle / 5)
	}
	f.Close()

	expectPath(t, got, path)
	expectNothing(t, got)
}

func TestWatcher_SkipsUnmatched(t *testing.T) {
	match := func(name string) bool { return strings.HasSuffix(name, ".mp4") }
	dir, got, _ := startWatcher(t, match)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectNothing(t, got)

	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectPath(t, got, path)
}

func TestWatcher_ForgetsRemovedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dir: dir, Settle: time.Hour})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "clip.mp4")
	w.touch(path)
	if w.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", w.Pending())
	}
	w.forget(path)
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", w.Pending())
	}
}

func TestWatcher_WriteAfterFireHandledOnce(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir(), Settle: settle})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	// Let the first timer fire and queue the path before Run takes it.
	w.touch("clip.mp4")
	deadline := time.Now().Add(3 * time.Second)
	for len(w.ready) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A late write restarts the settle period.
	w.touch("clip.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths := make(chan string, 4)
	go w.Run(ctx, func(path string) { paths <- path })

	expectPath(t, paths, "clip.mp4")
	expectNothing(t, paths)
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", w.Pending())
	}
}

func TestWatcher_CloseStopsRun(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir(), Settle: time.Hour})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.touch("clip.mp4")

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), func(string) {}) }()

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d after Close", w.Pending())
	}
}
