package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/daemon"
	"github.com/ppiankov/termwatch/internal/taxonomy"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap termwatch configuration",
	Long: `Creates the config directory with a default config.yaml and taxonomy.yaml,
plus the inbox, outbox and state directories used by 'termwatch watch'.

Location: ~/.termwatch/ (override with TERMWATCH_CONFIG_DIR).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(os.Stdout, config.GetConfigDir())
	},
}

func runInit(w io.Writer, configDir string) error {
	var created []string

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if wrote, err := writeIfMissing(configPath, config.Sample); err != nil {
		return err
	} else if wrote {
		created = append(created, configPath)
	}

	taxPath := filepath.Join(configDir, "taxonomy.yaml")
	taxContent, err := defaultTaxonomyYAML()
	if err != nil {
		return fmt.Errorf("generate default taxonomy: %w", err)
	}
	if wrote, err := writeIfMissing(taxPath, taxContent); err != nil {
		return err
	} else if wrote {
		created = append(created, taxPath)
	}

	defaults := config.DefaultConfig(configDir)
	dirs := daemon.DirConfig{
		Inbox:  defaults.Watch.Inbox,
		Outbox: defaults.Watch.Outbox,
		State:  defaults.Watch.State,
	}
	if err := daemon.EnsureDirs(dirs); err != nil {
		return err
	}

	fmt.Fprintln(w, "termwatch init complete.")
	fmt.Fprintln(w)
	if len(created) > 0 {
		fmt.Fprintln(w, "Created:")
		for _, path := range created {
			fmt.Fprintf(w, "  %s\n", path)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "All files already exist (use --force to overwrite).")
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Verify:")
	fmt.Fprintln(w, "  termwatch doctor")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Evaluate a transcript:")
	fmt.Fprintln(w, "  termwatch evaluate call.txt")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Watch the inbox:")
	fmt.Fprintf(w, "  termwatch watch   # drop .txt files into %s\n", dirs.Inbox)
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultTaxonomyYAML generates a commented default taxonomy.yaml.
func defaultTaxonomyYAML() (string, error) {
	data, err := taxonomy.Default().YAML()
	if err != nil {
		return "", err
	}
	header := "# termwatch taxonomy: address terms agents may and may not use.\n" +
		"# forbidden: never allowed, whatever the caller says.\n" +
		"# family_address: allowed once the caller uses the term for themselves.\n" +
		"# monk_address: always allowed.\n" +
		"# monk_self_reference: a caller using one unlocks every monk_address term.\n" +
		"#\n" +
		"# Changing this file changes taxonomy_hash in every report.\n\n"
	return header + string(data), nil
}
