package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/style"
	"github.com/lacquerai/dashwire/internal/widget"
)

var (
	discoverKind    string
	discoverArray   string
	discoverObject  string
	discoverQuery   string
	discoverHeaders map[string]string
)

// maxValueWidth truncates sample values in the text table.
const maxValueWidth = 48

var discoverCmd = &cobra.Command{
	Use:   "discover <url|file|->",
	Short: "List the fields of an API response that a widget can map",
	Long: `Fetch or read a JSON document and list the paths a widget of the given
kind can bind to.

Cards list every scalar leaf. Tables first list the arrays in the document;
pass --array to list the fields of the chosen array's first element. Charts
first list the top-level objects; pass --object to list the fields of the
chosen series' first member.`,
	Example: `
  dashwire discover https://api.example.com/quote
  dashwire discover response.json --kind table
  dashwire discover response.json --kind table --array data.items
  dashwire discover response.json --kind chart --object "Time Series (Daily)"
  curl -s https://api.example.com/quote | dashwire discover - --query price`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := widget.Type(discoverKind)
		if !kind.IsValid() {
			return fmt.Errorf("unknown widget kind %q (expected card, table or chart)", discoverKind)
		}

		doc, err := loadDocument(cmd.Context(), args[0], cmd.InOrStdin(), discoverHeaders)
		if err != nil {
			return err
		}

		sel := mapping.Selection{Kind: kind, ArrayPath: discoverArray, ObjectPath: discoverObject}
		fields := mapping.FilterFields(mapping.Discover(doc, sel), discoverQuery)

		switch viper.GetString("output") {
		case "json":
			style.PrintJSON(cmd.OutOrStdout(), fields)
		case "yaml":
			style.PrintYAML(cmd.OutOrStdout(), fields)
		default:
			printFields(cmd.OutOrStdout(), sel, fields)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVarP(&discoverKind, "kind", "k", string(widget.TypeCard), "widget kind (card, table, chart)")
	discoverCmd.Flags().StringVar(&discoverArray, "array", "", "array path whose element fields to list (table)")
	discoverCmd.Flags().StringVar(&discoverObject, "object", "", "keyed series path whose member fields to list (chart)")
	discoverCmd.Flags().StringVar(&discoverQuery, "query", "", "only show fields whose path or value contains this text")
	discoverCmd.Flags().StringToStringVarP(&discoverHeaders, "header", "H", nil, "request header as key=value (URLs only)")
}

func printFields(w io.Writer, sel mapping.Selection, fields []mapping.FlattenedField) {
	if len(fields) == 0 {
		style.Warning(w, "No fields found")
		return
	}

	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f.Path, f.Type, sample(f)})
	}
	style.PrintTable(w, []string{"PATH", "TYPE", "VALUE"}, rows)

	switch {
	case sel.Kind == widget.TypeTable && sel.ArrayPath == "":
		style.Info(w, "Pick an array with --array to list its columns")
	case sel.Kind == widget.TypeChart && sel.ObjectPath == "":
		style.Info(w, "Pick a series with --object to list its fields")
	}
}

// sample renders a field value for the table. Containers are summarized.
func sample(f mapping.FlattenedField) string {
	if arr, ok := jsonvalue.AsArray(f.Value); ok {
		return fmt.Sprintf("[%d items]", len(arr))
	}
	if keys, ok := jsonvalue.Keys(f.Value); ok {
		return fmt.Sprintf("{%d keys}", len(keys))
	}

	s := jsonvalue.Stringify(f.Value)
	if r := []rune(s); len(r) > maxValueWidth {
		return string(r[:maxValueWidth-3]) + "..."
	}
	return s
}
