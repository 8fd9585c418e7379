package systemd

import (
	"strings"
	"testing"
)

func testOptions() UnitOptions {
	return UnitOptions{
		Binary:     "/usr/local/bin/termwatch",
		Config:     "/etc/termwatch/config.yaml",
		User:       "termwatch",
		Inbox:      "/var/lib/termwatch/inbox",
		Outbox:     "/var/lib/termwatch/outbox",
		State:      "/var/lib/termwatch/state",
		HistoryDir: "/var/lib/termwatch",
	}
}

func TestWatchUnit(t *testing.T) {
	unit, err := WatchUnit(testOptions())
	if err != nil {
		t.Fatalf("WatchUnit: %v", err)
	}

	for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
		if !strings.Contains(unit, section) {
			t.Errorf("unit missing section %s", section)
		}
	}
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/termwatch watch --config /etc/termwatch/config.yaml") {
		t.Error("unit missing ExecStart for termwatch watch")
	}
	if !strings.Contains(unit, "User=termwatch") {
		t.Error("unit missing User=termwatch")
	}
	for _, directive := range []string{"NoNewPrivileges=true", "ProtectSystem=strict", "MemoryDenyWriteExecute=true"} {
		if !strings.Contains(unit, directive) {
			t.Errorf("unit missing security directive %s", directive)
		}
	}
	want := "ReadWritePaths=/var/lib/termwatch/inbox /var/lib/termwatch/outbox /var/lib/termwatch/state /var/lib/termwatch\n"
	if !strings.Contains(unit, want) {
		t.Errorf("unit missing %q:\n%s", want, unit)
	}
}

func TestWatchUnitOmitsOptionalFields(t *testing.T) {
	opts := testOptions()
	opts.User = ""
	opts.Config = ""
	opts.Outbox = opts.Inbox

	unit, err := WatchUnit(opts)
	if err != nil {
		t.Fatalf("WatchUnit: %v", err)
	}
	if strings.Contains(unit, "User=") {
		t.Error("unit should not set User when empty")
	}
	if strings.Contains(unit, "--config") {
		t.Error("unit should not pass --config when empty")
	}
	if strings.Count(unit, "/var/lib/termwatch/inbox") != 2 {
		t.Error("duplicate writable path should be listed once")
	}
}

func TestWatchUnitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UnitOptions)
	}{
		{"no binary", func(o *UnitOptions) { o.Binary = "" }},
		{"relative binary", func(o *UnitOptions) { o.Binary = "termwatch" }},
		{"no inbox", func(o *UnitOptions) { o.Inbox = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			if _, err := WatchUnit(opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
