package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := DirConfig{
		Inbox:  filepath.Join(root, "inbox"),
		Outbox: filepath.Join(root, "outbox"),
		State:  filepath.Join(root, "state"),
	}

	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}

	expected := []string{
		cfg.Inbox,
		cfg.Outbox,
		cfg.ProcessingDir(),
		cfg.DoneDir(),
		cfg.FailedDir(),
	}
	for _, dir := range expected {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestEnsureDirsIdempotent(t *testing.T) {
	root := t.TempDir()
	cfg := DirConfig{
		Inbox:  filepath.Join(root, "inbox"),
		Outbox: filepath.Join(root, "outbox"),
		State:  filepath.Join(root, "state"),
	}

	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("first EnsureDirs: %v", err)
	}
	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("second EnsureDirs should be idempotent: %v", err)
	}
}

func TestDirConfigSubdirectories(t *testing.T) {
	cfg := DefaultDirConfig("/home/qa")

	if cfg.Inbox != "/home/qa/.termwatch/inbox" {
		t.Errorf("Inbox = %q", cfg.Inbox)
	}
	if got := cfg.ProcessingDir(); got != "/home/qa/.termwatch/state/processing" {
		t.Errorf("ProcessingDir = %q", got)
	}
	if got := cfg.DoneDir(); got != "/home/qa/.termwatch/state/done" {
		t.Errorf("DoneDir = %q", got)
	}
	if got := cfg.FailedDir(); got != "/home/qa/.termwatch/state/failed" {
		t.Errorf("FailedDir = %q", got)
	}
}

func TestSameDevice(t *testing.T) {
	root := t.TempDir()
	cfg := DirConfig{
		Inbox:  filepath.Join(root, "inbox"),
		Outbox: filepath.Join(root, "outbox"),
		State:  filepath.Join(root, "state"),
	}
	if err := EnsureDirs(cfg); err != nil {
		t.Fatal(err)
	}

	same, err := sameDevice(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !same {
		t.Error("same tempdir should be same filesystem")
	}
}

func TestMoveFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	dst := filepath.Join(root, "b.txt")
	if err := os.WriteFile(src, []byte("Speaker 1: ครับ"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "Speaker 1: ครับ" {
		t.Errorf("unexpected destination content %q: %v", data, err)
	}
}

func TestCopyFilePreservesMode(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	dst := filepath.Join(root, "b.txt")
	if err := os.WriteFile(src, []byte("x"), 0640); err != nil {
		t.Fatal(err)
	}
	if err := copyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}
}
