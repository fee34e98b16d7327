package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lacquerai/dashwire/internal/presets"
	"github.com/lacquerai/dashwire/internal/style"
)

var presetAppend bool

var presetsCmd = &cobra.Command{
	Use:     "presets",
	Aliases: []string{"preset"},
	Short:   "Browse and apply built-in dashboards",
}

var presetsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List built-in dashboards",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := presets.List()
		if err != nil {
			return err
		}

		switch viper.GetString("output") {
		case "json":
			style.PrintJSON(cmd.OutOrStdout(), all)
		case "yaml":
			style.PrintYAML(cmd.OutOrStdout(), all)
		default:
			rows := make([][]string, 0, len(all))
			for _, p := range all {
				rows = append(rows, []string{p.Name, strconv.Itoa(len(p.Config.Widgets)), p.Description})
			}
			style.PrintTable(cmd.OutOrStdout(), []string{"NAME", "WIDGETS", "DESCRIPTION"}, rows)
		}
		return nil
	},
}

var presetsApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Load a built-in dashboard into the store",
	Long: `Replace the stored dashboard with a built-in one, or add its widgets to
the current dashboard with --append.`,
	Example: `
  dashwire presets apply markets
  dashwire presets apply crypto --append`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preset, err := presets.Get(args[0])
		if err != nil {
			return err
		}

		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if presetAppend {
			err = appendWidgets(cmd, st, preset.Config.Widgets)
		} else {
			err = st.Replace(cmd.Context(), preset.Config)
		}
		if err != nil {
			return err
		}

		if !viper.GetBool("quiet") {
			for _, w := range preset.Config.Widgets {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", widgetSummary(w))
			}
			style.Success(cmd.OutOrStdout(), fmt.Sprintf("Applied preset %s (%d widgets)", preset.Name, len(preset.Config.Widgets)))
		}
		return nil
	},
}

func init() {
	presetsApplyCmd.Flags().BoolVar(&presetAppend, "append", false, "add the preset's widgets to the current dashboard")
	presetsCmd.AddCommand(presetsListCmd, presetsApplyCmd)
	rootCmd.AddCommand(presetsCmd)
}
