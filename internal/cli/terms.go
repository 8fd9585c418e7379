package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/policy"
	"github.com/ppiankov/termwatch/internal/taxonomy"
)

var (
	termsYAML    bool
	termsAllowed []string
)

func init() {
	rootCmd.AddCommand(termsCmd)
	termsCmd.Flags().BoolVar(&termsYAML, "yaml", false, "Print the taxonomy as YAML")
	termsCmd.Flags().StringSliceVar(&termsAllowed, "disclosed", nil, "Show the terms allowed after these caller disclosures")
}

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Show the active taxonomy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTerms(os.Stdout, currentSettings(), termsYAML, termsAllowed)
	},
}

func runTerms(w io.Writer, cfg *config.Config, asYAML bool, disclosed []string) error {
	tax, err := taxonomy.Load(cfg.Taxonomy)
	if err != nil {
		return err
	}

	if asYAML {
		data, err := tax.YAML()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	if len(disclosed) > 0 {
		allowed := policy.AllowedSet(tax, disclosed)
		var terms []string
		for _, t := range tax.Terms() {
			if allowed[t] {
				terms = append(terms, t)
			}
		}
		fmt.Fprintf(w, "disclosed: %s\n", strings.Join(disclosed, ", "))
		fmt.Fprintf(w, "allowed:   %s\n", strings.Join(terms, ", "))
		return nil
	}

	fmt.Fprintf(w, "%-20s %s\n", "forbidden:", tax.Forbidden())
	for _, c := range []taxonomy.Category{taxonomy.FamilyAddress, taxonomy.MonkAddress, taxonomy.MonkSelfReference} {
		fmt.Fprintf(w, "%-20s %s\n", string(c)+":", strings.Join(tax.InCategory(c), ", "))
	}
	fmt.Fprintf(w, "%-20s %s\n", "prefixes:", strings.Join(tax.Prefixes(), ", "))
	fmt.Fprintf(w, "%-20s %s\n", "negation:", tax.Negation())
	fmt.Fprintf(w, "%-20s %s\n", "hash:", tax.Hash())
	return nil
}
