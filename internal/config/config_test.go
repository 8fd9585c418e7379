package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)

	if got := GetConfigDir(); got != dir {
		t.Errorf("GetConfigDir() = %q, want %q", got, dir)
	}
	if got := GetConfigPath(); got != filepath.Join(dir, "config.yaml") {
		t.Errorf("GetConfigPath() = %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Mode != "accumulate" {
		t.Errorf("mode = %q, want accumulate", cfg.Mode)
	}
	if cfg.Segmenter != SegmenterDictionary {
		t.Errorf("segmenter = %q", cfg.Segmenter)
	}
	if cfg.Watch.Inbox != filepath.Join(dir, "inbox") {
		t.Errorf("inbox = %q", cfg.Watch.Inbox)
	}
	if cfg.AuditLog != "" || cfg.HistoryDB != "" {
		t.Error("audit and history should be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)
	data := []byte("mode: latest\nsegmenter: whitespace\naudit_log: /var/log/termwatch.jsonl\nwatch:\n  poll: true\n  poll_interval: 500ms\n  workers: 2\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Mode != "latest" || cfg.Segmenter != SegmenterWhitespace {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.AuditLog != "/var/log/termwatch.jsonl" {
		t.Errorf("audit_log = %q", cfg.AuditLog)
	}
	if !cfg.Watch.Poll || cfg.Watch.PollInterval != 500*time.Millisecond || cfg.Watch.Workers != 2 {
		t.Errorf("unexpected watch config %+v", cfg.Watch)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TERMWATCH_CONFIG_DIR", t.TempDir())
	t.Setenv("TERMWATCH_MODE", "latest")
	t.Setenv("TERMWATCH_WATCH_WORKERS", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "latest" {
		t.Errorf("mode = %q, want latest", cfg.Mode)
	}
	if cfg.Watch.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Watch.Workers)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Setenv("TERMWATCH_CONFIG_DIR", t.TempDir())
	if _, err := Load("/nonexistent/termwatch.yaml"); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("segmenter: icu\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error for unknown segmenter")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/audit.jsonl"); got != filepath.Join(home, "audit.jsonl") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestSampleIsValid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)
	path := filepath.Join(dir, "sample.yaml")
	if err := os.WriteFile(path, []byte(Sample), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("sample config does not load: %v", err)
	}
}

func TestDefaultTaxonomyPathFollowsConfigDir(t *testing.T) {
	dir := t.TempDir()
	if got := DefaultConfig(dir).Taxonomy; got != filepath.Join(dir, "taxonomy.yaml") {
		t.Errorf("taxonomy = %q", got)
	}
}

func TestLoadAlerts(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)
	data := []byte("alerts:\n  - url: https://example.test/hook\n    format: slack\n    events: [FAIL, forbidden-term]\n    headers:\n      Authorization: Bearer qa\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Alerts) != 1 {
		t.Fatalf("alerts = %+v", cfg.Alerts)
	}
	a := cfg.Alerts[0]
	if a.Format != "slack" || len(a.Events) != 2 || a.Events[1] != "forbidden-term" {
		t.Errorf("unexpected alert %+v", a)
	}
}

func TestLoadAlertWithoutEvents(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMWATCH_CONFIG_DIR", dir)
	data := []byte("alerts:\n  - url: https://example.test/hook\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error for alert without events")
	}
}
