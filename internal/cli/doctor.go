package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/history"
	"github.com/ppiankov/termwatch/internal/segment"
	"github.com/ppiankov/termwatch/internal/systemd"
	"github.com/ppiankov/termwatch/internal/taxonomy"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and diagnose setup issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(os.Stdout, config.GetConfigDir(), currentSettings())
	},
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(w io.Writer, configDir string, cfg *config.Config) error {
	var checks []checkResult

	// 1. Config directory.
	if info, err := os.Stat(configDir); err == nil && info.IsDir() {
		checks = append(checks, checkResult{label: "config directory", ok: true, detail: configDir})
	} else {
		checks = append(checks, checkResult{label: "config directory", ok: false, detail: "missing", fix: "termwatch init"})
	}

	// 2. Taxonomy.
	tax, err := taxonomy.Load(cfg.Taxonomy)
	switch {
	case err != nil:
		checks = append(checks, checkResult{label: "taxonomy", ok: false, detail: err.Error(), fix: "termwatch terms --yaml > " + cfg.Taxonomy})
	case fileExists(cfg.Taxonomy):
		checks = append(checks, checkResult{label: "taxonomy", ok: true, detail: fmt.Sprintf("%s (%d terms)", cfg.Taxonomy, len(tax.Terms()))})
	default:
		checks = append(checks, checkResult{label: "taxonomy", ok: true, detail: fmt.Sprintf("built-in (%d terms)", len(tax.Terms()))})
	}

	// 3. Segmenter.
	if cfg.Segmenter == config.SegmenterWhitespace {
		checks = append(checks, checkResult{label: "segmenter", ok: true, detail: "whitespace"})
	} else if dict, err := segment.LoadDictionary(cfg.Dictionary); err != nil {
		checks = append(checks, checkResult{label: "segmenter", ok: false, detail: err.Error(), fix: "fix or unset dictionary"})
	} else {
		checks = append(checks, checkResult{label: "segmenter", ok: true, detail: fmt.Sprintf("dictionary (%d words)", dict.Len())})
	}

	// 4. Audit log.
	if cfg.AuditLog != "" && fileExists(cfg.AuditLog) {
		v := audit.Verify(cfg.AuditLog)
		if v.Valid {
			checks = append(checks, checkResult{label: "audit log", ok: true, detail: fmt.Sprintf("%d entries verified", v.Lines)})
		} else {
			checks = append(checks, checkResult{label: "audit log", ok: false, detail: fmt.Sprintf("line %d: %s", v.ErrorLine, v.Error), fix: "termwatch audit verify"})
		}
	} else {
		checks = append(checks, checkResult{label: "audit log", ok: true, detail: "not written yet"})
	}

	// 5. History database.
	if cfg.HistoryDB != "" {
		if store, err := history.Open(cfg.HistoryDB); err != nil {
			checks = append(checks, checkResult{label: "history db", ok: false, detail: err.Error()})
		} else {
			st, err := store.Stats(context.Background())
			store.Close()
			if err != nil {
				checks = append(checks, checkResult{label: "history db", ok: false, detail: err.Error()})
			} else {
				checks = append(checks, checkResult{label: "history db", ok: true, detail: fmt.Sprintf("%d runs", st.Total)})
			}
		}
	} else {
		checks = append(checks, checkResult{label: "history db", ok: true, detail: "disabled"})
	}

	// 6. Watch inbox.
	if info, err := os.Stat(cfg.Watch.Inbox); err == nil && info.IsDir() {
		checks = append(checks, checkResult{label: "watch inbox", ok: true, detail: cfg.Watch.Inbox})
	} else {
		checks = append(checks, checkResult{label: "watch inbox", ok: false, detail: "missing", fix: "termwatch init"})
	}

	// 7. Service unit, only when one was installed.
	if hashPath := filepath.Join(configDir, unitHashFile); fileExists(hashPath) {
		if msg := systemd.CheckUnitHash(serviceUnitPath, hashPath); msg != "" {
			checks = append(checks, checkResult{label: "service unit", ok: false, detail: msg, fix: "termwatch service --install"})
		} else {
			checks = append(checks, checkResult{label: "service unit", ok: true, detail: serviceUnitPath})
		}
	}

	// Print results.
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(w, line)
	}

	if hasFailures {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "All checks passed.")
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
