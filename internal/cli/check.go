package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/scenario"
)

var (
	checkScenario string
	checkFormat   string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenario, "scenario", "", "Glob pattern for scenario YAML files (required)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.MarkFlagRequired("scenario")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run expected verdicts from scenario files",
	Long: "Loads scenario YAML files matching a glob pattern, evaluates each\n" +
		"transcript case and compares the verdict with the expected one.\n\n" +
		"Exit code 0 if all cases pass, 1 if any fail.\n" +
		"Use in CI to gate taxonomy or dictionary changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		failed, err := runCheck(os.Stdout, currentSettings(), checkScenario, checkFormat)
		if err != nil {
			return err
		}
		if failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// runCheck runs every scenario matching pattern and returns the number of
// failed cases.
func runCheck(w io.Writer, cfg *config.Config, pattern, format string) (int, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("no scenario files match pattern: %s", pattern)
	}

	eval, err := buildEvaluator(cfg)
	if err != nil {
		return 0, err
	}

	var results []*scenario.RunResult
	for _, path := range matches {
		r, err := scenario.LoadAndRun(path, eval)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
	}

	switch format {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return 0, err
		}
		fmt.Fprintln(w, out)
	default:
		fmt.Fprint(w, scenario.FormatText(results))
	}

	failed := 0
	for _, r := range results {
		failed += r.Failed
	}
	return failed, nil
}
