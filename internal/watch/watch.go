// Package watch analyzes clips as they land in a drop directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must go without writes before it is handed
// off. Dashcams and copy tools write clips in many chunks.
const DefaultSettle = 2 * time.Second

// ErrNoDir is returned when no directory is configured.
var ErrNoDir = errors.New("watch: no directory")

// Handler receives the path of a settled file.
type Handler func(path string)

// Config holds watcher settings.
type Config struct {
	Dir    string
	Settle time.Duration
	// Match filters file names. Nil accepts every file.
	Match func(path string) bool
}

// Watcher debounces fsnotify events per file and hands settled files to a
// Handler one at a time.
type Watcher struct {
	watcher *fsnotify.Watcher
	settle  time.Duration
	match   func(string) bool

	mu      sync.Mutex
	pending map[string]*pendingFile
	gen     uint64
	ready   chan settled
	done    chan struct{}
	once    sync.Once
}

// pendingFile is a file waiting to settle. gen changes on every touch so a
// send from a superseded timer can be recognized.
type pendingFile struct {
	timer *time.Timer
	gen   uint64
}

type settled struct {
	path string
	gen  uint64
}

// New starts watching cfg.Dir.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, ErrNoDir
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(cfg.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}

	return &Watcher{
		watcher: fw,
		settle:  cfg.Settle,
		match:   cfg.Match,
		pending: make(map[string]*pendingFile),
		ready:   make(chan settled, 16),
		done:    make(chan struct{}),
	}, nil
}

// Run dispatches settled files until ctx is cancelled or the watcher is
// closed. Handlers run sequentially on the calling goroutine.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				w.touch(event.Name)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watch error", "error", err)
		case s := <-w.ready:
			if w.claim(s) {
				handle(s.path)
			}
		}
	}
}

// touch restarts the settle timer for path.
func (w *Watcher) touch(path string) {
	if w.match != nil && !w.match(filepath.Base(path)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// A fired timer may already have queued this path; replacing the entry
	// makes that send stale.
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	w.gen++
	s := settled{path: path, gen: w.gen}
	timer := time.AfterFunc(w.settle, func() {
		select {
		case w.ready <- s:
		case <-w.done:
		}
	})
	w.pending[path] = &pendingFile{timer: timer, gen: s.gen}
}

// claim removes the pending entry for s and reports whether s is its
// current generation.
func (w *Watcher) claim(s settled) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[s.path]
	if !ok || p.gen != s.gen {
		return false
	}
	delete(w.pending, s.path)
	return true
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// Pending reports how many files are waiting to settle.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close stops the watcher and drops pending files.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)

		w.mu.Lock()
		for path, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}
