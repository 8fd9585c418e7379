package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/history"
	"github.com/ppiankov/termwatch/internal/model"
	"github.com/ppiankov/termwatch/internal/report"
)

var (
	historyStatus string
	historySince  time.Duration
	historyLimit  int
	historyStats  bool
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Only show PASS or FAIL runs")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only show runs newer than this (e.g. 24h)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show (0 = all)")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show totals instead of runs")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded evaluation runs",
	Long:  "Reads the SQLite run history written by evaluate and watch when\nhistory_db (or --history-db) is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := currentSettings().HistoryDB
		if path == "" {
			return fmt.Errorf("no history database: set history_db or pass --history-db")
		}
		q := history.Query{
			Status: model.Status(strings.ToUpper(historyStatus)),
			Limit:  historyLimit,
		}
		if historySince > 0 {
			q.Since = time.Now().Add(-historySince)
		}
		return runHistory(cmd.Context(), os.Stdout, path, q, historyStats, historyFormat)
	},
}

func runHistory(ctx context.Context, w io.Writer, path string, q history.Query, stats bool, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	var v any
	if stats {
		st, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		if format != "json" {
			fmt.Fprintf(w, "Runs: %d (%d pass, %d fail) | Violations: %d\n", st.Total, st.Passed, st.Failed, st.Violations)
			return nil
		}
		v = st
	} else {
		runs, err := store.List(ctx, q)
		if err != nil {
			return err
		}
		if format != "json" {
			writeRuns(w, runs)
			return nil
		}
		v = runs
	}

	out, err := report.FormatJSON(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

func writeRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tSTATUS\tVIOLATIONS\tDISCLOSED\tTRANSCRIPT")
	for _, r := range runs {
		disclosed := "-"
		if len(r.Disclosed) > 0 {
			disclosed = strings.Join(r.Disclosed, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Status, len(r.Violations), disclosed, r.Transcript)
	}
	tw.Flush()
}
