package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/testhelper"
	"github.com/lacquerai/dashwire/internal/widget"
)

func writeWidget(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func cardWidgetJSON(url string) string {
	return fmt.Sprintf(`{
		"title": "IBM quote",
		"type": "card",
		"position": {"x": 0, "y": 0, "width": 4, "height": 3},
		"fieldMapping": [
			{"sourcePath": "Global Quote.01. symbol", "displayLabel": "Symbol", "format": "text"},
			{"sourcePath": "Global Quote.05. price", "displayLabel": "Price", "format": "currency"},
			{"sourcePath": "Global Quote.10. change percent", "displayLabel": "Change", "format": "text"},
			{"sourcePath": "Global Quote.missing", "displayLabel": "Missing", "format": "number"}
		],
		"apiConfig": {"url": %q, "headers": {}, "refreshInterval": 0}
	}`, url)
}

const tableWidgetYAML = `title: Holdings
type: table
fieldMapping:
  arrayPath: holdings
  columns:
    - sourcePath: name
      label: Name
    - sourcePath: weight
      label: Weight
      format: percent
apiConfig:
  url: https://example.com/holdings
`

const chartWidgetJSON = `{
	"title": "Daily",
	"type": "chart",
	"fieldMapping": {
		"arrayPath": "Time Series (Daily)",
		"chartType": "candlestick",
		"yFields": [
			{"sourcePath": "1. open", "displayLabel": "Open"},
			{"sourcePath": "4. close", "displayLabel": "Close"}
		]
	},
	"apiConfig": {"url": "https://example.com/daily"}
}`

type mappedOutcome struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func TestMapWidgetFile(t *testing.T) {
	setupCLI(t)
	api := testhelper.NewAPIServer(t, quoteResponse)
	file := writeWidget(t, "card.json", cardWidgetJSON(api.URL))

	out, err := executeCommand(rootCmd, "map", "--widget-file", file, "--output", "json", "--currency-symbol", "$")
	require.NoError(t, err)

	var got mappedOutcome
	require.NoError(t, json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &got))
	assert.Equal(t, "IBM quote", got.Title)
	assert.JSONEq(t, `{
		"kind": "card",
		"card": [
			{"label": "Symbol", "sourcePath": "Global Quote.01. symbol", "rawValue": "IBM", "formattedValue": "IBM"},
			{"label": "Price", "sourcePath": "Global Quote.05. price", "rawValue": "172.5000", "formattedValue": "$172.5"},
			{"label": "Change", "sourcePath": "Global Quote.10. change percent", "rawValue": "0.4073%", "formattedValue": "0.4073%"},
			{"label": "Missing", "sourcePath": "Global Quote.missing", "rawValue": null, "formattedValue": "-"}
		]
	}`, string(got.Data))
	assert.Equal(t, 1, api.Hits())
}

func TestMapSpinner(t *testing.T) {
	setupCLI(t)
	api := testhelper.NewAPIServer(t, quoteResponse)
	file := writeWidget(t, "card.json", cardWidgetJSON(api.URL))

	out, err := executeCommand(rootCmd, "map", "--widget-file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "[SET SUFFIX]  Fetching IBM quote")
	assert.Contains(t, out, "[SPINNER START]")
	assert.Contains(t, out, "[SPINNER STOP]")

	text := stripANSI(out)
	assert.Contains(t, text, "IBM quote")
	assert.Contains(t, text, "Price")
	assert.Contains(t, text, "172.5")
}

func TestMapDocumentYAMLWidget(t *testing.T) {
	setupCLI(t)
	file := writeWidget(t, "table.yaml", tableWidgetYAML)
	doc := writeDocument(t, quoteResponse)

	out, err := executeCommand(rootCmd, "map", "-f", file, "--document", doc, "--quiet")
	require.NoError(t, err)

	text := stripANSI(out)
	assert.Contains(t, text, "Holdings")
	assert.Contains(t, text, "Apple")
	assert.Contains(t, text, "12.00%")
	assert.Contains(t, text, "2 rows")
	assert.NotContains(t, text, "[SPINNER START]", "quiet hides progress")
}

func TestMapChartDocument(t *testing.T) {
	setupCLI(t)
	file := writeWidget(t, "chart.json", chartWidgetJSON)
	doc := writeDocument(t, quoteResponse)

	out, err := executeCommand(rootCmd, "map", "-f", file, "-d", doc, "--quiet", "--limit", "1")
	require.NoError(t, err)

	text := stripANSI(out)
	assert.Contains(t, text, "Open")
	assert.Contains(t, text, "2024-01-02", "limit keeps the latest points")
	assert.NotContains(t, text, "2024-01-01")
	assert.Contains(t, text, "2 points")
}

func TestMapStoredWidgets(t *testing.T) {
	setupCLI(t)
	api := testhelper.NewAPIServer(t, quoteResponse)
	broken := testhelper.NewAPIServer(t, "")
	broken.Respond(http.StatusNotFound, `{"error": "gone"}`)

	_, err := executeCommand(rootCmd, "widgets", "add", writeWidget(t, "a.json", cardWidgetJSON(api.URL)))
	require.NoError(t, err)
	_, err = executeCommand(rootCmd, "widgets", "add", writeWidget(t, "b.json", cardWidgetJSON(broken.URL)))
	require.NoError(t, err)

	out, err := executeCommand(rootCmd, "map", "--all", "--output", "json", "--quiet")
	assert.ErrorContains(t, err, "1 of 2 widgets failed to refresh")

	var got []mappedOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Empty(t, got[0].Error)
	assert.NotEmpty(t, got[0].Data)
	assert.Contains(t, got[1].Error, "404")

	out, err = executeCommand(rootCmd, "map", got[0].ID, "--output", "json", "--quiet")
	require.NoError(t, err)
	var single mappedOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &single))
	assert.Equal(t, got[0].ID, single.ID)
}

func TestMapArgumentErrors(t *testing.T) {
	setupCLI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing to map", []string{"map"}, "specify a widget id"},
		{"unknown widget", []string{"map", "nope"}, "widget not found"},
		{"file and all", []string{"map", "-f", "w.json", "--all"}, "cannot be combined"},
		{"all and document", []string{"map", "--all", "-d", "doc.json"}, "--document maps a single widget"},
		{"empty dashboard", []string{"map", "--all"}, "the dashboard has no widgets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(rootCmd, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMapInvalidWidgetFile(t *testing.T) {
	setupCLI(t)
	file := writeWidget(t, "bad.json", `{"title": "x", "type": "card", "fieldMapping": [], "apiConfig": {"url": "ftp://x"}}`)

	_, err := executeCommand(rootCmd, "map", "-f", file)
	assert.ErrorIs(t, err, widget.ErrInvalidWidget)
}

func TestRefreshLabel(t *testing.T) {
	assert.Equal(t, "once", refreshLabel(0))
	assert.Equal(t, "30s", refreshLabel(30000))
	assert.Equal(t, "1500ms", refreshLabel(1500))
}
