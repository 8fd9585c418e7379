package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// maxConcurrentJobs is the default number of transcripts evaluated at once.
const maxConcurrentJobs = 5

// maxQueueSize bounds the work queue. It must exceed the worker count so a
// burst of arrivals does not block the debounce flush.
const maxQueueSize = 200

// pollDefault is the default polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// InboxWatcher watches a directory for new transcripts using fsnotify.
type InboxWatcher struct {
	inbox    string
	handler  func(path string)
	debounce time.Duration
	workers  int
}

// NewInboxWatcher creates a watcher for the inbox directory.
func NewInboxWatcher(inbox string, handler func(path string)) *InboxWatcher {
	return &InboxWatcher{
		inbox:    inbox,
		handler:  handler,
		debounce: debounceDefault,
		workers:  maxConcurrentJobs,
	}
}

// WithWorkers sets the size of the worker pool. n <= 0 keeps the default.
func (w *InboxWatcher) WithWorkers(n int) *InboxWatcher {
	if n > 0 {
		w.workers = n
	}
	return w
}

// Run watches the inbox for new transcripts. Blocks until ctx is cancelled.
// Pending paths are flushed and in-flight evaluations finish before Run
// returns.
func (w *InboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.inbox); err != nil {
		return err
	}

	queue := make(chan string, maxQueueSize)
	done := w.startWorkers(queue)
	pending := newPendingSet()

	// One timer for all files: it restarts on every event and flushes the
	// whole pending set when writes go quiet.
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer func() {
		timer.Stop()
		pending.flush(ctx, queue)
		close(queue)
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			pending.flush(ctx, queue)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writers rename finished files into place, which shows up as Create.
			if !event.Has(fsnotify.Create) || !isTranscriptFile(event.Name) {
				continue
			}
			pending.add(event.Name)
			resetTimer(timer, w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "daemon: watch %s: %v\n", w.inbox, err)
		}
	}
}

// startWorkers runs w.workers goroutines draining queue. The returned
// channel closes once queue is closed and every worker has exited.
func (w *InboxWatcher) startWorkers(queue <-chan string) <-chan struct{} {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.handle(path)
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// handle runs the handler, logging a panic instead of killing the worker.
func (w *InboxWatcher) handle(path string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "daemon: panic processing %s: %v\n", filepath.Base(path), r)
		}
	}()
	w.handler(path)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// pendingSet holds paths seen since the last flush.
type pendingSet struct {
	mu    sync.Mutex
	paths map[string]bool
}

func newPendingSet() *pendingSet {
	return &pendingSet{paths: make(map[string]bool)}
}

func (p *pendingSet) add(path string) {
	p.mu.Lock()
	p.paths[path] = true
	p.mu.Unlock()
}

// flush moves every pending path onto queue in name order.
func (p *pendingSet) flush(ctx context.Context, queue chan<- string) {
	p.mu.Lock()
	batch := make([]string, 0, len(p.paths))
	for path := range p.paths {
		batch = append(batch, path)
	}
	p.paths = make(map[string]bool)
	p.mu.Unlock()

	sort.Strings(batch)
	for _, path := range batch {
		select {
		case queue <- path:
		case <-ctx.Done():
			return
		}
	}
}

// PollWatcher watches a directory for new transcripts using polling.
// Used as a fallback when fsnotify is unavailable (e.g., NFS).
type PollWatcher struct {
	inbox    string
	handler  func(path string)
	interval time.Duration
	seen     map[string]pollEntry
}

// pollEntry is what the last scan saw of one inbox file.
type pollEntry struct {
	size    int64
	modTime time.Time
	handled bool
}

// NewPollWatcher creates a polling-based watcher.
func NewPollWatcher(inbox string, handler func(path string), interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		inbox:    inbox,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]pollEntry),
	}
}

// Run polls the inbox directory. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan checks for new transcripts in the inbox. A file is handed off once
// it is non-empty and its size and mtime match the previous scan, so a
// transcript still being written is left alone. A path is handled once and
// forgotten after it leaves the inbox, so a re-delivered file with the same
// name is evaluated again.
func (w *PollWatcher) scan() {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.inbox, e.Name())
		if !isTranscriptFile(path) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		present[path] = true

		prev, ok := w.seen[path]
		if ok && prev.handled {
			continue
		}
		cur := pollEntry{size: info.Size(), modTime: info.ModTime()}
		stable := ok && cur.size > 0 && cur.size == prev.size && cur.modTime.Equal(prev.modTime)
		if !stable {
			w.seen[path] = cur
			continue
		}
		cur.handled = true
		w.seen[path] = cur
		w.handler(path)
	}
	for path := range w.seen {
		if !present[path] {
			delete(w.seen, path)
		}
	}
}

// ScanExisting processes any transcripts already present in the inbox.
// Called at startup to handle files that arrived while the daemon was down.
func ScanExisting(inbox string, handler func(path string)) error {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(inbox, e.Name())
		if isTranscriptFile(path) {
			handler(path)
		}
	}
	return nil
}

// isTranscriptFile reports whether path is a transcript ready for
// evaluation: a .txt file that is not hidden (editors and rsync write
// dot-prefixed partials).
func isTranscriptFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, TranscriptExt) && !strings.HasPrefix(name, ".")
}
