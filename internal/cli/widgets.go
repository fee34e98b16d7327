package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lacquerai/dashwire/internal/style"
	"github.com/lacquerai/dashwire/internal/widget"
)

var widgetsCmd = &cobra.Command{
	Use:     "widgets",
	Aliases: []string{"widget", "w"},
	Short:   "Manage the widgets of the stored dashboard",
}

var widgetsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List widgets",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		widgets := st.List()
		switch viper.GetString("output") {
		case "json":
			style.PrintJSON(cmd.OutOrStdout(), widgets)
		case "yaml":
			style.PrintYAML(cmd.OutOrStdout(), widgets)
		default:
			if len(widgets) == 0 {
				style.Info(cmd.OutOrStdout(), "The dashboard has no widgets")
				return nil
			}
			rows := make([][]string, 0, len(widgets))
			for _, w := range widgets {
				rows = append(rows, []string{
					w.ID,
					w.Title,
					style.WidgetType(string(w.Type)),
					w.APIConfig.URL,
					refreshLabel(w.APIConfig.RefreshInterval),
				})
			}
			style.PrintTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "TYPE", "URL", "REFRESH"}, rows)
		}
		return nil
	},
}

var widgetsAddCmd = &cobra.Command{
	Use:   "add <file|->",
	Short: "Add a widget from a JSON or YAML definition",
	Example: `
  dashwire widgets add card.yaml
  cat table.json | dashwire widgets add -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := readWidgetFile(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		added, err := st.Add(cmd.Context(), w)
		if err != nil {
			return err
		}

		if viper.GetString("output") == "json" {
			style.PrintJSON(cmd.OutOrStdout(), added)
			return nil
		}
		style.Success(cmd.OutOrStdout(), fmt.Sprintf("Added %s widget %q (%s)", added.Type, added.Title, added.ID))
		return nil
	},
}

var widgetsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a widget definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		w, err := st.Get(args[0])
		if err != nil {
			return err
		}

		if viper.GetString("output") == "json" {
			style.PrintJSON(cmd.OutOrStdout(), w)
		} else {
			style.PrintYAML(cmd.OutOrStdout(), w)
		}
		return nil
	},
}

var widgetsRemoveCmd = &cobra.Command{
	Use:     "remove <id>...",
	Aliases: []string{"rm"},
	Short:   "Remove widgets",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		for _, id := range args {
			if err := st.Remove(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to remove %s: %w", id, err)
			}
			if !viper.GetBool("quiet") {
				style.Success(cmd.OutOrStdout(), "Removed "+id)
			}
		}
		return nil
	},
}

func init() {
	widgetsCmd.AddCommand(widgetsListCmd, widgetsAddCmd, widgetsShowCmd, widgetsRemoveCmd)
	rootCmd.AddCommand(widgetsCmd)
}

func refreshLabel(ms int) string {
	if ms <= 0 {
		return "once"
	}
	if ms%1000 == 0 {
		return strconv.Itoa(ms/1000) + "s"
	}
	return strconv.Itoa(ms) + "ms"
}

// widgetSummary is one line of import/apply output.
func widgetSummary(w widget.Widget) string {
	return fmt.Sprintf("%s %s", style.WidgetType(string(w.Type)), w.Title)
}
