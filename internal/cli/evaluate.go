package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/alert"
	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/history"
	"github.com/ppiankov/termwatch/internal/model"
	"github.com/ppiankov/termwatch/internal/report"
	"github.com/ppiankov/termwatch/internal/transcript"
)

// stdinName is the argument that reads a transcript from standard input.
const stdinName = "-"

var evalFormat string

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evalFormat, "format", "f", "text", "Output format (text|json)")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <transcript>...",
	Short: "Evaluate call transcripts for address-term compliance",
	Long: "Reads each transcript (Speaker 1: agent, Speaker 2: caller), tracks what the\n" +
		"caller disclosed about themselves and checks every agent line against it.\n" +
		"Use - to read a transcript from stdin.\n\n" +
		"Exit code 0 if every transcript passes, 1 if any fails.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed, err := runEvaluate(cmd.Context(), os.Stdout, currentSettings(), args, evalFormat)
		if err != nil {
			return err
		}
		if failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// evaluated pairs a transcript with its result for JSON output.
type evaluated struct {
	Transcript     string        `json:"transcript"`
	TranscriptHash string        `json:"transcript_hash"`
	Result         *model.Result `json:"result"`
}

// runEvaluate evaluates paths and writes the report to w. It returns the
// number of failing transcripts.
func runEvaluate(ctx context.Context, w io.Writer, cfg *config.Config, paths []string, format string) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	eval, err := buildEvaluator(cfg)
	if err != nil {
		return 0, err
	}

	var auditLog *audit.Log
	if cfg.AuditLog != "" {
		auditLog, err = audit.Open(cfg.AuditLog)
		if err != nil {
			return 0, err
		}
		defer auditLog.Close()
	}
	var store *history.Store
	if cfg.HistoryDB != "" {
		store, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return 0, err
		}
		defer store.Close()
	}

	alerts := alert.NewDispatcher(cfg.Alerts)
	if alerts != nil {
		defer alerts.Wait()
	}

	var (
		out     []evaluated
		results []*model.Result
		failed  int
	)
	for _, path := range paths {
		doc, err := loadTranscript(path)
		if err != nil {
			return failed, err
		}
		if doc.Unattributed > 0 {
			warnf("%s: %d line(s) without a speaker label were skipped", path, doc.Unattributed)
		}
		res := eval.EvaluateDocument(doc)
		if res.Status == model.Fail {
			failed++
		}
		results = append(results, res)
		out = append(out, evaluated{Transcript: path, TranscriptHash: doc.Hash, Result: res})

		if auditLog != nil {
			if err := auditLog.Record(audit.EntryFromResult(path, doc.Hash, res)); err != nil {
				return failed, err
			}
		}
		if store != nil {
			if _, err := store.Record(ctx, history.RunFromResult(path, doc.Hash, res)); err != nil {
				return failed, err
			}
		}
		if alerts != nil {
			alerts.Dispatch(alert.EventFromResult(path, doc.Hash, res))
		}
	}

	switch format {
	case "json":
		var v any = out
		if len(out) == 1 {
			v = out[0]
		}
		s, err := report.FormatJSON(v)
		if err != nil {
			return failed, err
		}
		fmt.Fprintln(w, s)
	default:
		for i, e := range out {
			fmt.Fprint(w, report.FormatText(e.Transcript, results[i]))
		}
		if len(out) > 1 {
			fmt.Fprintln(w)
			fmt.Fprint(w, report.FormatSummary(results))
		}
	}
	return failed, nil
}

func loadTranscript(path string) (*transcript.Document, error) {
	if path == stdinName {
		return transcript.Parse(os.Stdin)
	}
	return transcript.Load(path)
}
