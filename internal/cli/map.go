package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/style"
	"github.com/lacquerai/dashwire/internal/widget"
)

var (
	mapWidgetFile string
	mapDocument   string
	mapAll        bool
	mapLimit      int
	mapParallel   int
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map [widget-id]",
	Short: "Fetch a widget's endpoint and show its mapped data",
	Long: `Fetch the endpoint of a stored widget (or of a widget definition file)
and render the mapped result the way the dashboard would show it.

Use --document to map a saved response instead of fetching, which is handy
while designing a field mapping.`,
	Example: `
  dashwire map 6f1c...                        # Map a stored widget
  dashwire map --all                          # Map every stored widget
  dashwire map --widget-file card.yaml        # Map a widget that is not stored yet
  dashwire map --widget-file card.yaml --document response.json
  dashwire map 6f1c... --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		widgets, err := resolveMapTargets(cmd, args)
		if err != nil {
			return err
		}

		results := mapWidgets(cmd.Context(), cmd.ErrOrStderr(), engine, widgets, cmd.InOrStdin())
		return printResults(cmd.OutOrStdout(), engine, results)
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringVarP(&mapWidgetFile, "widget-file", "f", "", "widget definition file (JSON or YAML, - for stdin)")
	mapCmd.Flags().StringVarP(&mapDocument, "document", "d", "", "map this document (url, file or -) instead of fetching the widget endpoint")
	mapCmd.Flags().BoolVar(&mapAll, "all", false, "map every stored widget")
	mapCmd.Flags().IntVar(&mapLimit, "limit", 20, "maximum rows shown per table or chart (0 for all)")
	mapCmd.Flags().IntVar(&mapParallel, "parallel", 4, "widgets fetched concurrently with --all")
}

// mapOutcome is the result of mapping one widget.
type mapOutcome struct {
	Widget   widget.Widget   `json:"-" yaml:"-"`
	ID       string          `json:"id" yaml:"id"`
	Title    string          `json:"title" yaml:"title"`
	Data     *mapping.Result `json:"data,omitempty" yaml:"data,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
}

func resolveMapTargets(cmd *cobra.Command, args []string) ([]widget.Widget, error) {
	switch {
	case mapWidgetFile != "":
		if mapAll || len(args) > 0 {
			return nil, errors.New("--widget-file cannot be combined with a widget id or --all")
		}
		w, err := readWidgetFile(mapWidgetFile, cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		if w.Title == "" {
			w.Title = mapWidgetFile
		}
		if mapDocument == "" {
			if err := widget.Validate(&w).ToError(); err != nil {
				return nil, err
			}
		}
		return []widget.Widget{w}, nil

	case mapAll:
		if len(args) > 0 {
			return nil, errors.New("--all cannot be combined with a widget id")
		}
		if mapDocument != "" {
			return nil, errors.New("--document maps a single widget")
		}
		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return nil, err
		}
		defer closeStore()

		widgets := st.List()
		if len(widgets) == 0 {
			return nil, errors.New("the dashboard has no widgets")
		}
		return widgets, nil

	case len(args) == 1:
		st, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return nil, err
		}
		defer closeStore()

		w, err := st.Get(args[0])
		if err != nil {
			return nil, err
		}
		return []widget.Widget{w}, nil

	default:
		return nil, errors.New("specify a widget id, --widget-file or --all")
	}
}

// mapWidgets fetches and maps every widget with bounded concurrency. One
// widget failing does not stop the others.
func mapWidgets(ctx context.Context, progress io.Writer, engine *mapping.Engine, widgets []widget.Widget, stdin io.Reader) []mapOutcome {
	if ctx == nil {
		ctx = context.Background()
	}

	spin := style.NewSpinner(progress)
	if !viper.GetBool("quiet") {
		if len(widgets) == 1 {
			spin.SetSuffix(" Fetching " + widgets[0].Title)
		} else {
			spin.SetSuffix(fmt.Sprintf(" Fetching %d widgets", len(widgets)))
		}
		spin.Start()
		defer spin.Stop()
	}

	fetcher := newFetcher()
	outcomes := make([]mapOutcome, len(widgets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, mapParallel))
	for i, w := range widgets {
		g.Go(func() error {
			start := time.Now()
			out := mapOutcome{Widget: w, ID: w.ID, Title: w.Title}

			var (
				doc any
				err error
			)
			if mapDocument != "" {
				doc, err = loadDocument(ctx, mapDocument, stdin, w.APIConfig.Headers)
			} else {
				doc, err = fetcher.Fetch(ctx, w.APIConfig)
			}

			if err != nil {
				out.Error = err.Error()
			} else {
				result := engine.Map(doc, w.FieldMapping)
				out.Data = &result
			}
			out.Duration = time.Since(start)
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func printResults(w io.Writer, engine *mapping.Engine, outcomes []mapOutcome) error {
	switch viper.GetString("output") {
	case "json":
		if len(outcomes) == 1 {
			style.PrintJSON(w, outcomes[0])
		} else {
			style.PrintJSON(w, outcomes)
		}
	case "yaml":
		if len(outcomes) == 1 {
			style.PrintYAML(w, outcomes[0])
		} else {
			style.PrintYAML(w, outcomes)
		}
	default:
		for i, out := range outcomes {
			if i > 0 {
				fmt.Fprintln(w)
			}
			renderOutcome(w, engine, out)
		}
	}

	failed := 0
	for _, out := range outcomes {
		if out.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d widgets failed to refresh", failed, len(outcomes))
	}
	return nil
}

func renderOutcome(w io.Writer, engine *mapping.Engine, out mapOutcome) {
	if out.Error != "" {
		style.Error(w, fmt.Sprintf("%s: %s", out.Title, out.Error))
		return
	}

	result := out.Data
	switch result.Kind {
	case widget.TypeCard:
		labels := make([]string, len(result.Card))
		values := make([]string, len(result.Card))
		for i, f := range result.Card {
			labels[i] = f.Label
			values[i] = f.FormattedValue
		}
		fmt.Fprintln(w, style.RenderCard(out.Title, labels, values))

	case widget.TypeTable:
		fmt.Fprintln(w, style.TitleStyle.Render(out.Title))
		renderTable(w, engine.Formatter(), result.Table)

	case widget.TypeChart:
		fmt.Fprintln(w, style.TitleStyle.Render(out.Title))
		renderChart(w, result.Chart)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintln(w, style.DurationStyle.Render(fmt.Sprintf("fetched and mapped in %s", out.Duration.Round(time.Millisecond))))
	}
}

func renderTable(w io.Writer, formatter *mapping.Formatter, table *mapping.MappedTableData) {
	if table == nil || table.Total == 0 {
		style.Warning(w, "No rows")
		return
	}

	headers := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		headers[i] = c.Label
	}

	rows := make([][]string, 0, len(table.Rows))
	for _, r := range limitRows(table.Rows) {
		cells := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			cell := r.Cells[c.Key]
			if cell == mapping.Placeholder {
				cells[i] = cell
				continue
			}
			cells[i] = formatter.Format(c.Format, cell)
		}
		rows = append(rows, cells)
	}
	style.PrintTable(w, headers, rows)

	footer := fmt.Sprintf("%d rows", table.Total)
	if table.LastUpdated != "" {
		footer += ", last updated " + table.LastUpdated
	}
	fmt.Fprintln(w, style.MutedStyle.Render(footer))
}

// renderChart prints the series side by side. Every series of a chart has
// one point per source row, in the same order.
func renderChart(w io.Writer, chart *mapping.ChartData) {
	if chart == nil || len(chart.Series) == 0 {
		style.Warning(w, "No series")
		return
	}

	headers := []string{"TIME"}
	var columns [][]string
	var times []string

	for _, s := range chart.Series {
		switch series := s.(type) {
		case *mapping.LineSeries:
			headers = append(headers, series.Label)
			col := make([]string, len(series.Data))
			for i, p := range series.Data {
				col[i] = formatPoint(p.Value)
				times = appendTime(times, i, p.Time)
			}
			columns = append(columns, col)

		case *mapping.CandlestickSeries:
			headers = append(headers, "Open", "High", "Low", "Close")
			open, high, low, closing := make([]string, len(series.Data)), make([]string, len(series.Data)), make([]string, len(series.Data)), make([]string, len(series.Data))
			for i, c := range series.Data {
				open[i], high[i], low[i], closing[i] = formatPoint(c.Open), formatPoint(c.High), formatPoint(c.Low), formatPoint(c.Close)
				times = appendTime(times, i, c.Time)
			}
			columns = append(columns, open, high, low, closing)

		case *mapping.HistogramSeries:
			headers = append(headers, "Volume")
			col := make([]string, len(series.Data))
			for i, p := range series.Data {
				v := p.Value
				col[i] = formatPoint(&v)
				times = appendTime(times, i, p.Time)
			}
			columns = append(columns, col)
		}
	}

	start := 0
	if mapLimit > 0 && len(times) > mapLimit {
		start = len(times) - mapLimit
	}

	rows := make([][]string, 0, len(times)-start)
	for i := start; i < len(times); i++ {
		row := []string{times[i]}
		for _, col := range columns {
			if i < len(col) {
				row = append(row, col[i])
			} else {
				row = append(row, mapping.Placeholder)
			}
		}
		rows = append(rows, row)
	}
	style.PrintTable(w, headers, rows)
	fmt.Fprintln(w, style.MutedStyle.Render(fmt.Sprintf("%d points", len(times))))
}

func appendTime(times []string, i int, t string) []string {
	if i < len(times) {
		return times
	}
	return append(times, t)
}

func formatPoint(v *float64) string {
	if v == nil {
		return mapping.Placeholder
	}
	return mapping.FormatValue(widget.FormatNumber, *v)
}

func limitRows(rows []mapping.MappedRow) []mapping.MappedRow {
	if mapLimit > 0 && len(rows) > mapLimit {
		return rows[:mapLimit]
	}
	return rows
}
