package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/termwatch/internal/alert"
	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/history"
	"github.com/ppiankov/termwatch/internal/model"
)

func setupProcessorDirs(t *testing.T) DirConfig {
	t.Helper()
	root := t.TempDir()
	cfg := DirConfig{
		Inbox:  filepath.Join(root, "inbox"),
		Outbox: filepath.Join(root, "outbox"),
		State:  filepath.Join(root, "state"),
	}
	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return cfg
}

func writeTranscript(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func readReport(t *testing.T, dirs DirConfig, id string) *Report {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dirs.Outbox, id+".json"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	return &r
}

func TestProcessorEvaluatesTranscript(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(ProcessorConfig{Dirs: dirs})

	path := writeTranscript(t, dirs.Inbox, "call-001.txt",
		"Speaker 2: ลุงอยากถาม",
		"Speaker 1: ลุงครับ ยินดีช่วยนะครับ",
	)
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	r := readReport(t, dirs, "call-001")
	if r.Status != ReportDone || r.Result == nil {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.Result.Status != model.Pass {
		t.Errorf("expected PASS, got %s", r.Result.Status)
	}
	if !strings.HasPrefix(r.TranscriptHash, "sha256:") {
		t.Errorf("expected transcript hash, got %q", r.TranscriptHash)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("transcript should leave the inbox")
	}
	if _, err := os.Stat(filepath.Join(dirs.DoneDir(), "call-001.txt")); err != nil {
		t.Errorf("transcript should be in done: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dirs.Outbox, "call-001.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp report should be renamed away")
	}
}

func TestProcessorReportsViolations(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(ProcessorConfig{Dirs: dirs})

	path := writeTranscript(t, dirs.Inbox, "call-002.txt", "Speaker 1: พี่ครับ รอสักครู่นะครับ")
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	r := readReport(t, dirs, "call-002")
	if r.Result.Status != model.Fail || len(r.Result.Violations) != 1 {
		t.Fatalf("expected one violation, got %+v", r.Result)
	}
	if r.Result.Violations[0].Kind != model.ForbiddenTerm {
		t.Errorf("expected forbidden-term, got %s", r.Result.Violations[0].Kind)
	}
}

func TestProcessorInvalidName(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(ProcessorConfig{Dirs: dirs})

	path := writeTranscript(t, dirs.Inbox, "bad name!.txt", "Speaker 1: ครับ")
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	entries, _ := os.ReadDir(dirs.Outbox)
	if len(entries) != 1 {
		t.Fatalf("expected one failed report, got %d", len(entries))
	}
	data, _ := os.ReadFile(filepath.Join(dirs.Outbox, entries[0].Name()))
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatal(err)
	}
	if r.Status != ReportFailed || !strings.Contains(r.Error, "validation failed") {
		t.Errorf("unexpected report %+v", r)
	}
	if _, err := os.Stat(filepath.Join(dirs.FailedDir(), "bad name!.txt")); err != nil {
		t.Errorf("invalid transcript should be moved to failed: %v", err)
	}
}

func TestProcessorRejectsSymlink(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(ProcessorConfig{Dirs: dirs})

	target := writeTranscript(t, t.TempDir(), "secret.txt", "Speaker 1: ครับ")
	link := filepath.Join(dirs.Inbox, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	err := p.Process(context.Background(), link)
	if err == nil || !strings.Contains(err.Error(), "rejected symlink") {
		t.Fatalf("expected symlink rejection, got %v", err)
	}
}

func TestProcessorRecordsAuditAndHistory(t *testing.T) {
	dirs := setupProcessorDirs(t)
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")

	al, err := audit.Open(auditPath)
	if err != nil {
		t.Fatal(err)
	}
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := NewProcessor(ProcessorConfig{Dirs: dirs, Audit: al, History: store})
	path := writeTranscript(t, dirs.Inbox, "call-003.txt", "Speaker 1: ป้าครับ ขอบคุณครับ")
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	al.Close()

	v := audit.Verify(auditPath)
	if !v.Valid || v.Lines != 1 {
		t.Errorf("expected one valid audit entry, got %+v", v)
	}

	runs, err := store.List(context.Background(), history.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != model.Fail {
		t.Errorf("expected one failing run, got %+v", runs)
	}
	if filepath.Base(runs[0].Transcript) != "call-003.txt" {
		t.Errorf("unexpected transcript path %q", runs[0].Transcript)
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"call-001", "2025.01.15_a"} {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v", id, err)
		}
	}
	for _, id := range []string{"", "..", "a..b", "a/b", "a b"} {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) should fail", id)
		}
	}
}

func TestProcessorDispatchesAlerts(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dirs := setupProcessorDirs(t)
	alerts := alert.NewDispatcher([]alert.AlertConfig{
		{URL: srv.URL, Events: []string{alert.EventForbidden}},
	})
	p := NewProcessor(ProcessorConfig{Dirs: dirs, Alerts: alerts})

	pass := writeTranscript(t, dirs.Inbox, "call-004.txt", "Speaker 1: ท่านครับ")
	fail := writeTranscript(t, dirs.Inbox, "call-005.txt", "Speaker 1: พี่ครับ")
	for _, path := range []string{pass, fail} {
		if err := p.Process(context.Background(), path); err != nil {
			t.Fatal(err)
		}
	}
	alerts.Wait()

	if called.Load() != 1 {
		t.Errorf("expected one alert for the forbidden term, got %d", called.Load())
	}
}
