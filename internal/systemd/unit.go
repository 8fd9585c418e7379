// Package systemd renders and verifies the unit file that runs
// "termwatch watch" as a service.
package systemd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"
)

// DefaultUnitName is the file name used when installing the unit.
const DefaultUnitName = "termwatch-watch.service"

// UnitOptions fills the watch unit template.
type UnitOptions struct {
	Binary string // absolute path to the termwatch binary
	Config string // config file passed via --config
	User   string
	Inbox  string
	Outbox string
	State  string
	// HistoryDir is where the audit log and history database live.
	HistoryDir string
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=termwatch transcript evaluator (inbox {{.Inbox}})
After=local-fs.target

[Service]
Type=simple
{{- if .User}}
User={{.User}}
{{- end}}
ExecStart={{.Binary}} watch{{if .Config}} --config {{.Config}}{{end}}
Restart=on-failure
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=read-only
ProtectKernelTunables=true
RestrictNamespaces=true
MemoryDenyWriteExecute=true
ReadWritePaths={{range $i, $d := .Writable}}{{if $i}} {{end}}{{$d}}{{end}}

[Install]
WantedBy=multi-user.target
`))

// WatchUnit renders the unit file for opts. Binary and Inbox are required.
func WatchUnit(opts UnitOptions) (string, error) {
	if opts.Binary == "" {
		return "", fmt.Errorf("systemd: binary path is required")
	}
	if !filepath.IsAbs(opts.Binary) {
		return "", fmt.Errorf("systemd: binary path %q must be absolute", opts.Binary)
	}
	if opts.Inbox == "" {
		return "", fmt.Errorf("systemd: inbox is required")
	}

	var writable []string
	seen := make(map[string]bool)
	for _, d := range []string{opts.Inbox, opts.Outbox, opts.State, opts.HistoryDir} {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		writable = append(writable, d)
	}

	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, struct {
		UnitOptions
		Writable []string
	}{opts, writable})
	if err != nil {
		return "", fmt.Errorf("systemd: render unit: %w", err)
	}
	return buf.String(), nil
}
