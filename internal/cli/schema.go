package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lacquerai/dashwire/pkg/schema"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Output the widget JSON schema and field values",
	Long: `Output the JSON schema of a widget definition together with the widget
types, display formats, chart types and key orders it accepts.`,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := schema.GetSchema()
		if err != nil {
			return fmt.Errorf("error generating schema: %w", err)
		}

		outputBytes, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling output: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(outputBytes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
