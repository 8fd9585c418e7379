package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/daemon"
	"github.com/ppiankov/termwatch/internal/policy"
)

var (
	watchInbox    string
	watchOutbox   string
	watchState    string
	watchPoll     bool
	watchInterval time.Duration
	watchWorkers  int
	watchNoReload bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "Directory to watch for .txt transcripts")
	watchCmd.Flags().StringVar(&watchOutbox, "outbox", "", "Directory for JSON reports")
	watchCmd.Flags().StringVar(&watchState, "state", "", "Directory for processing/done/failed state")
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Use polling instead of inotify")
	watchCmd.Flags().DurationVar(&watchInterval, "poll-interval", 0, "Poll interval when --poll is set")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "Concurrent evaluations")
	watchCmd.Flags().BoolVar(&watchNoReload, "no-reload", false, "Do not reload the taxonomy and lexicon when they change")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Evaluate transcripts dropped into an inbox directory",
	Long: "Runs termwatch as a daemon. Each .txt transcript written to the inbox is\n" +
		"evaluated, a JSON report is written to the outbox and the transcript is\n" +
		"moved to state/done (or state/failed if it could not be read).",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := currentSettings()
	applyWatchFlags(cmd, cfg)

	eval, err := buildEvaluator(cfg)
	if err != nil {
		return err
	}

	dcfg := daemon.Config{
		Dirs: daemon.DirConfig{
			Inbox:  cfg.Watch.Inbox,
			Outbox: cfg.Watch.Outbox,
			State:  cfg.Watch.State,
		},
		Evaluator:    eval,
		AuditLog:     cfg.AuditLog,
		HistoryDB:    cfg.HistoryDB,
		Alerts:       cfg.Alerts,
		PollMode:     cfg.Watch.Poll,
		PollInterval: cfg.Watch.PollInterval,
		Workers:      cfg.Watch.Workers,
	}
	if !watchNoReload {
		dcfg.Rebuild = func() (*policy.Evaluator, error) { return buildEvaluator(cfg) }
		dcfg.ReloadPaths = []string{cfg.Taxonomy, cfg.Dictionary}
	}

	d, err := daemon.New(dcfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, "termwatch watch")
	fmt.Fprintf(os.Stderr, "Inbox:    %s\n", cfg.Watch.Inbox)
	fmt.Fprintf(os.Stderr, "Outbox:   %s\n", cfg.Watch.Outbox)
	fmt.Fprintf(os.Stderr, "State:    %s\n", cfg.Watch.State)
	fmt.Fprintf(os.Stderr, "Mode:     %s\n", eval.Mode())
	if cfg.Watch.Poll {
		fmt.Fprintf(os.Stderr, "Watcher:  polling every %s\n", cfg.Watch.PollInterval)
	} else {
		fmt.Fprintln(os.Stderr, "Watcher:  fsnotify")
	}
	if dcfg.Rebuild != nil {
		fmt.Fprintln(os.Stderr, "Reload:   on taxonomy/lexicon change")
	}
	fmt.Fprintln(os.Stderr)

	return d.Run(ctx)
}

// applyWatchFlags overrides watch settings with explicitly set flags.
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("inbox") {
		cfg.Watch.Inbox = watchInbox
	}
	if flags.Changed("outbox") {
		cfg.Watch.Outbox = watchOutbox
	}
	if flags.Changed("state") {
		cfg.Watch.State = watchState
	}
	if flags.Changed("poll") {
		cfg.Watch.Poll = watchPoll
	}
	if flags.Changed("poll-interval") && watchInterval > 0 {
		cfg.Watch.PollInterval = watchInterval
	}
	if flags.Changed("workers") && watchWorkers > 0 {
		cfg.Watch.Workers = watchWorkers
	}
}
