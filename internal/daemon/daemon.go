package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ppiankov/termwatch/internal/alert"
	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/history"
	"github.com/ppiankov/termwatch/internal/policy"
)

// Config holds full daemon configuration.
type Config struct {
	Dirs         DirConfig
	Evaluator    *policy.Evaluator
	AuditLog     string // empty disables audit
	HistoryDB    string // empty disables history
	Alerts       []alert.AlertConfig
	PollMode     bool
	PollInterval time.Duration
	Workers      int

	// Rebuild, when set, is called to construct a fresh evaluator whenever
	// one of ReloadPaths changes.
	Rebuild     func() (*policy.Evaluator, error)
	ReloadPaths []string
}

// Daemon watches the inbox directory and evaluates transcripts.
type Daemon struct {
	cfg       Config
	processor *Processor
}

// New creates a daemon with validated configuration.
func New(cfg Config) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.Outbox == "" || cfg.Dirs.State == "" {
		return nil, fmt.Errorf("inbox, outbox, and state directories are required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	if cfg.Workers <= 0 {
		cfg.Workers = maxConcurrentJobs
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = policy.New(nil, nil)
	}

	p := NewProcessor(ProcessorConfig{
		Dirs:      cfg.Dirs,
		Evaluator: cfg.Evaluator,
		Alerts:    alert.NewDispatcher(cfg.Alerts),
	})
	return &Daemon{cfg: cfg, processor: p}, nil
}

// Run starts the daemon. Blocks until ctx is cancelled.
// On startup, re-queues orphaned processing files and evaluates any
// transcripts already in the inbox.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	// Acquire PID file lock to prevent duplicate instances.
	pidPath := filepath.Join(d.cfg.Dirs.State, "daemon.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	if same, err := sameDevice(d.cfg.Dirs); err == nil && !same {
		fmt.Fprintf(os.Stderr, "daemon: inbox and state are on different filesystems; moves will copy\n")
	}

	if d.cfg.AuditLog != "" {
		al, err := audit.Open(d.cfg.AuditLog)
		if err != nil {
			return err
		}
		defer al.Close()
		d.processor.cfg.Audit = al
	}
	if d.cfg.HistoryDB != "" {
		store, err := history.Open(d.cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		d.processor.cfg.History = store
	}

	if d.processor.cfg.Alerts != nil {
		defer d.processor.cfg.Alerts.Wait()
	}

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	handler := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: process %s: %v\n", filepath.Base(path), err)
		}
	}

	if err := ScanExisting(d.cfg.Dirs.Inbox, handler); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	if d.cfg.Rebuild != nil && len(d.cfg.ReloadPaths) > 0 {
		r, err := NewReloader(d.cfg.ReloadPaths, d.cfg.Rebuild, d.processor.SetEvaluator)
		if err != nil {
			fmt.Fprintf(os.Stderr, "daemon: hot-reload disabled: %v\n", err)
		} else {
			go r.Run(ctx)
		}
	}

	fmt.Fprintf(os.Stderr, "daemon: watching %s (mode %s, %d workers)\n",
		d.cfg.Dirs.Inbox, d.processor.Evaluator().Mode(), d.cfg.Workers)

	if d.cfg.PollMode {
		pw := NewPollWatcher(d.cfg.Dirs.Inbox, handler, d.cfg.PollInterval)
		return pw.Run(ctx)
	}

	w := NewInboxWatcher(d.cfg.Dirs.Inbox, handler).WithWorkers(d.cfg.Workers)
	return w.Run(ctx)
}

// recoverOrphans moves transcripts left in state/processing/ back to the
// inbox. They were interrupted by a crash or restart; evaluation is
// deterministic, so running them again is safe.
func (d *Daemon) recoverOrphans() error {
	procDir := d.cfg.Dirs.ProcessingDir()
	entries, err := os.ReadDir(procDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isTranscriptFile(e.Name()) {
			continue
		}
		src := filepath.Join(procDir, e.Name())
		if err := moveFile(src, filepath.Join(d.cfg.Dirs.Inbox, e.Name())); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: recover orphan %s: %v\n", e.Name(), err)
		}
	}
	return nil
}

// acquirePIDLock writes the current PID to the file and checks for stale locks.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(string(data))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another daemon is running (PID %d)", pid)
				}
			}
		}
		// Stale PID file.
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
