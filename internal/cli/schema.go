package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/report"
)

func init() {
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of an evaluation result",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := report.Schema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}
