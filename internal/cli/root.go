package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/policy"
	"github.com/ppiankov/termwatch/internal/segment"
	"github.com/ppiankov/termwatch/internal/taxonomy"
)

var (
	flagConfig     string
	flagTaxonomy   string
	flagDictionary string
	flagSegmenter  string
	flagMode       string
	flagAuditLog   string
	flagHistoryDB  string
)

// settings is the merged config file, environment and flag view,
// populated before any subcommand runs.
var settings *config.Config

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to config file (default ~/.termwatch/config.yaml)")
	pf.StringVar(&flagTaxonomy, "taxonomy", "", "Path to taxonomy YAML")
	pf.StringVar(&flagDictionary, "dictionary", "", "Extra lexicon merged into the built-in dictionary")
	pf.StringVar(&flagSegmenter, "segmenter", "", "Segmenter (dictionary|whitespace)")
	pf.StringVar(&flagMode, "mode", "", "Disclosure mode (accumulate|latest)")
	pf.StringVar(&flagAuditLog, "audit-log", "", "Append evaluations to this hash-chained JSONL log")
	pf.StringVar(&flagHistoryDB, "history-db", "", "Record evaluations in this SQLite database")
}

var rootCmd = &cobra.Command{
	Use:   "termwatch",
	Short: "Address-term compliance checks for Thai call transcripts",
	Long: "Checks that call-centre agents only address callers with kinship or monastic\n" +
		"terms the caller has used for themselves, and never with the forbidden term.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings reads the config and lets explicitly set flags override it.
func loadSettings(cmd *cobra.Command) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("taxonomy") {
		cfg.Taxonomy = flagTaxonomy
	}
	if flags.Changed("dictionary") {
		cfg.Dictionary = flagDictionary
	}
	if flags.Changed("segmenter") {
		cfg.Segmenter = flagSegmenter
	}
	if flags.Changed("mode") {
		cfg.Mode = flagMode
	}
	if flags.Changed("audit-log") {
		cfg.AuditLog = flagAuditLog
	}
	if flags.Changed("history-db") {
		cfg.HistoryDB = flagHistoryDB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings = cfg
	return nil
}

// buildEvaluator constructs the evaluator described by cfg.
func buildEvaluator(cfg *config.Config) (*policy.Evaluator, error) {
	tax, err := taxonomy.Load(cfg.Taxonomy)
	if err != nil {
		return nil, err
	}

	mode, err := policy.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	var seg segment.Segmenter
	switch cfg.Segmenter {
	case config.SegmenterWhitespace:
		seg = segment.Whitespace{}
	default:
		dict, err := segment.LoadDictionary(cfg.Dictionary)
		if err != nil {
			return nil, err
		}
		// Taxonomy terms must segment as whole words even when a custom
		// taxonomy adds terms the lexicon does not know.
		for _, term := range tax.Terms() {
			if !dict.Contains(term) {
				dict.Add(term, "NCMN")
			}
		}
		for _, p := range tax.Prefixes() {
			if !dict.Contains(p) {
				dict.Add(p, "")
			}
		}
		seg = dict
	}

	return policy.New(tax, seg, policy.WithMode(mode)), nil
}

// currentSettings returns the loaded settings, or defaults when a command
// runs without the root pre-run (tests).
func currentSettings() *config.Config {
	if settings != nil {
		return settings
	}
	return config.DefaultConfig(config.GetConfigDir())
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
