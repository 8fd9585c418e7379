package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/audit"
)

var (
	tailLines      int
	tailStatus     string
	tailTranscript string
	tailFrom       string
	tailTo         string
	tailFormat     string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show (0 = all)")
	auditTailCmd.Flags().StringVar(&tailStatus, "status", "", "Only show PASS or FAIL entries")
	auditTailCmd.Flags().StringVar(&tailTranscript, "transcript", "", "Only show entries whose transcript path contains this")
	auditTailCmd.Flags().StringVar(&tailFrom, "from", "", "Start time filter (RFC3339)")
	auditTailCmd.Flags().StringVar(&tailTo, "to", "", "End time filter (RFC3339)")
	auditTailCmd.Flags().StringVarP(&tailFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long: "Walks the JSONL audit log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry and that every verdict is\n" +
		"consistent with its violations. Exits 0 if valid, 1 if tampered.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent evaluations from an audit log",
	Long:  "Reads the audit log, applies the filters and renders the last N\nevaluations as a timeline with a summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := auditPath(args)
		if err != nil {
			return err
		}
		filter, err := tailFilter()
		if err != nil {
			return err
		}
		return runAuditTail(os.Stdout, path, tailLines, filter, tailFormat)
	},
}

// auditPath returns the explicit path argument or the configured log.
func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if p := currentSettings().AuditLog; p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no audit log: pass a path or set audit_log")
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func tailFilter() (audit.Filter, error) {
	filter := audit.Filter{Status: tailStatus, Transcript: tailTranscript}

	if tailFrom != "" {
		from, err := time.Parse(time.RFC3339, tailFrom)
		if err != nil {
			return filter, fmt.Errorf("invalid --from time %q: %w", tailFrom, err)
		}
		filter.From = from
	}

	if tailTo != "" {
		to, err := time.Parse(time.RFC3339, tailTo)
		if err != nil {
			return filter, fmt.Errorf("invalid --to time %q: %w", tailTo, err)
		}
		filter.To = to
	}
	return filter, nil
}

func runAuditTail(w io.Writer, path string, n int, filter audit.Filter, format string) error {
	result, err := audit.Tail(path, n, filter)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
	default:
		fmt.Fprint(w, audit.FormatTimeline(result))
	}
	return nil
}
