package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/termwatch/internal/policy"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader watches the taxonomy and lexicon files and swaps in a rebuilt
// evaluator when one of them changes. Transcripts already being evaluated
// finish with the evaluator they started with.
type Reloader struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	build   func() (*policy.Evaluator, error)
	apply   func(*policy.Evaluator)
	delay   time.Duration

	mu       sync.Mutex
	debounce *time.Timer
}

// NewReloader watches the parent directories of paths, so files replaced
// by rename (as most editors save) are still noticed. Empty paths and
// paths whose directory does not exist are skipped.
func NewReloader(paths []string, build func() (*policy.Evaluator, error), apply func(*policy.Evaluator)) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Reloader{
		watcher: watcher,
		files:   make(map[string]bool),
		build:   build,
		apply:   apply,
		delay:   reloadDebounce,
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		dir := filepath.Dir(abs)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		r.files[abs] = true
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
		dirs[dir] = true
	}
	return r, nil
}

// Watched reports how many files the reloader tracks.
func (r *Reloader) Watched() int { return len(r.files) }

// Run watches for file changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if r.debounce != nil {
				r.debounce.Stop()
			}
			r.mu.Unlock()
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !r.files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				r.schedule()
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "daemon: reload watcher error: %v\n", err)
		}
	}
}

// schedule reloads once writes have been quiet for the debounce delay.
func (r *Reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(r.delay, r.reload)
}

func (r *Reloader) reload() {
	e, err := r.build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon: reload failed, keeping current taxonomy: %v\n", err)
		return
	}
	r.apply(e)
	fmt.Fprintf(os.Stderr, "daemon: reloaded taxonomy %s\n", e.Taxonomy().Hash())
}
