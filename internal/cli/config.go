package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/style"
	"github.com/lacquerai/dashwire/internal/widget"
)

var (
	importAppend bool
	importDryRun bool
)

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export the dashboard config",
	Long: `Write the dashboard config to a file, or to stdout when no path is given.

When path is a directory the file is named dashboard-config-YYYY-MM-DD.json.`,
	Example: `
  dashwire export                    # Print the config
  dashwire export backups/           # Write backups/dashboard-config-2024-05-01.json
  dashwire export dash.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		cfg := st.Export()
		if len(args) == 0 {
			if viper.GetString("output") == "yaml" {
				style.PrintYAML(cmd.OutOrStdout(), cfg)
				return nil
			}
			data, err := widget.EncodeConfig(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		path := exportPath(args[0], time.Now())
		data, err := widget.EncodeConfig(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		if !viper.GetBool("quiet") {
			style.Success(cmd.OutOrStdout(), fmt.Sprintf("Exported %d widgets to %s", cfg.TotalWidgets, path))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace the dashboard with an exported config",
	Long: `Import a dashboard config written by 'dashwire export' or by the dashboard
UI. JSON and YAML are accepted. The current widgets are replaced unless
--append is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readSource(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if importDryRun {
			return previewImport(cmd, st, data)
		}

		var cfg *widget.Config
		if importAppend {
			cfg, err = widget.ParseConfig(data)
			if err != nil {
				return err
			}
			if err := appendWidgets(cmd, st, cfg.Widgets); err != nil {
				return err
			}
		} else {
			cfg, err = st.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
		}

		if !viper.GetBool("quiet") {
			for _, w := range cfg.Widgets {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", widgetSummary(w))
			}
			style.Success(cmd.OutOrStdout(), fmt.Sprintf("Imported %d widgets", len(cfg.Widgets)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	importCmd.Flags().BoolVar(&importAppend, "append", false, "add the imported widgets to the current dashboard")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show how the dashboard would change without importing")
}

// exportPath resolves the export destination; directories get a dated
// file name.
func exportPath(path string, now time.Time) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, store.ExportFilename(now))
	}
	return path
}

func readSource(source string, stdin io.Reader) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(source) // #nosec G304 - path supplied by the user
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s does not exist", source)
	}
	return data, err
}

// appendWidgets adds widgets to st, assigning fresh ids to any that collide.
func appendWidgets(cmd *cobra.Command, st *store.Store, widgets []widget.Widget) error {
	for _, w := range widgets {
		if _, err := st.Get(w.ID); err == nil {
			w.ID = store.NewID()
		}
		if _, err := st.Add(cmd.Context(), w); err != nil {
			return fmt.Errorf("failed to add %q: %w", w.Title, err)
		}
	}
	return nil
}

// previewImport prints a line diff of the dashboard widgets before and
// after the import. The store is left untouched.
func previewImport(cmd *cobra.Command, st *store.Store, data []byte) error {
	cfg, err := widget.ParseConfig(data)
	if err != nil {
		return err
	}

	current := st.List()
	next := cfg.Widgets
	if importAppend {
		next = append(append([]widget.Widget{}, current...), cfg.Widgets...)
	}

	changed, err := printWidgetDiff(cmd.OutOrStdout(), current, next)
	if err != nil {
		return err
	}
	if !changed {
		style.Info(cmd.OutOrStdout(), "The import would not change the dashboard")
		return nil
	}
	style.Info(cmd.OutOrStdout(), fmt.Sprintf("Dry run: %d widgets would be imported", len(cfg.Widgets)))
	return nil
}

// printWidgetDiff writes a unified line diff of the indented JSON of both
// widget lists and reports whether they differ.
func printWidgetDiff(w io.Writer, before, after []widget.Widget) (bool, error) {
	a, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return false, err
	}
	b, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	changed := false
	for _, d := range diffs {
		prefix, render := "  ", style.MutedStyle.Render
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix, render, changed = "+ ", style.SuccessStyle.Render, true
		case diffmatchpatch.DiffDelete:
			prefix, render, changed = "- ", style.ErrorStyle.Render, true
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintln(w, render(prefix+line))
		}
	}
	return changed, nil
}
