package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/termwatch/internal/history"
)

func testDaemonConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	return Config{
		Dirs: DirConfig{
			Inbox:  filepath.Join(root, "inbox"),
			Outbox: filepath.Join(root, "outbox"),
			State:  filepath.Join(root, "state"),
		},
		PollMode:     true,
		PollInterval: 50 * time.Millisecond,
	}
}

func TestNewDaemonValidation(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestNewDaemonValid(t *testing.T) {
	d, err := New(testDaemonConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.processor == nil {
		t.Error("processor should not be nil")
	}
	if d.cfg.Workers != maxConcurrentJobs {
		t.Errorf("workers = %d, want default %d", d.cfg.Workers, maxConcurrentJobs)
	}
}

func TestDaemonProcessesExistingFiles(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.HistoryDB = filepath.Join(t.TempDir(), "history.db")
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}
	writeTranscript(t, cfg.Dirs.Inbox, "existing-001.txt", "Speaker 2: อาตมาเจริญพร", "Speaker 1: ท่านรอสักครู่ครับ")

	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_ = d.Run(ctx)

	r := readReport(t, cfg.Dirs, "existing-001")
	if r.Result == nil || r.Result.Score != 1 {
		t.Errorf("expected passing report, got %+v", r)
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	st, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 1 {
		t.Errorf("expected one run in history, got %+v", st)
	}
}

func TestDaemonPicksUpNewFiles(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	writeTranscript(t, cfg.Dirs.Inbox, "new-001.txt", "Speaker 1: ป้าครับ")
	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	r := readReport(t, cfg.Dirs, "new-001")
	if r.Result == nil || r.Result.Score != 0 {
		t.Errorf("expected failing report, got %+v", r)
	}
}

func TestDaemonPollWaitsForSlowWriter(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(cfg.Dirs.Inbox, "slow-001.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	if _, err := f.WriteString("Speaker 1: พี่ครับ\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	r := readReport(t, cfg.Dirs, "slow-001")
	if r.Status != ReportDone || r.Result == nil {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.Result.Score != 0 || len(r.Result.Violations) != 1 {
		t.Errorf("expected the forbidden term to be reported, got %+v", r.Result)
	}
}

func TestDaemonRecoverOrphans(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	orphanPath := writeTranscript(t, cfg.Dirs.ProcessingDir(), "orphan-001.txt", "Speaker 1: ท่านครับ")

	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_ = d.Run(ctx)

	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Error("orphan should be removed from processing")
	}

	// The orphan is re-queued and evaluated like any other transcript.
	r := readReport(t, cfg.Dirs, "orphan-001")
	if r.Status != ReportDone {
		t.Errorf("orphan report status = %q, want %q", r.Status, ReportDone)
	}
}

func TestDaemonGracefulShutdown(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.PollMode = false
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on graceful shutdown, got: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop after context cancellation")
	}
}

func TestDaemonPIDLock(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	pidPath := filepath.Join(cfg.Dirs.State, "daemon.pid")

	if err := acquirePIDLock(pidPath); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	// Second lock should fail (our process is still running).
	if err := acquirePIDLock(pidPath); err == nil {
		t.Error("expected error for duplicate PID lock")
	}

	_ = os.Remove(pidPath)
}

func TestDaemonPIDLockStaleCleanup(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	pidPath := filepath.Join(cfg.Dirs.State, "daemon.pid")

	// Write a stale PID (very high PID unlikely to be running).
	if err := os.WriteFile(pidPath, []byte("9999999"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := acquirePIDLock(pidPath); err != nil {
		t.Fatalf("stale PID cleanup failed: %v", err)
	}

	_ = os.Remove(pidPath)
}
