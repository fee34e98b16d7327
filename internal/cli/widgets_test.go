package cli

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/widget"
)

func listWidgets(t *testing.T, args ...string) []widget.Widget {
	t.Helper()

	out, err := executeCommand(rootCmd, append([]string{"widgets", "list", "--output", "json"}, args...)...)
	require.NoError(t, err)

	var widgets []widget.Widget
	require.NoError(t, json.Unmarshal([]byte(out), &widgets))
	return widgets
}

func TestWidgetsLifecycle(t *testing.T) {
	storeFile := setupCLI(t)

	out, err := executeCommand(rootCmd, "widgets", "list")
	require.NoError(t, err)
	assert.Contains(t, stripANSI(out), "The dashboard has no widgets")

	out, err = executeCommand(rootCmd, "widgets", "add", writeWidget(t, "card.json", cardWidgetJSON("https://example.com/quote")))
	require.NoError(t, err)
	assert.Contains(t, stripANSI(out), `Added card widget "IBM quote"`)
	assert.FileExists(t, storeFile)

	out, err = executeCommandWithInput(rootCmd, []byte(tableWidgetYAML), "widgets", "add", "-")
	require.NoError(t, err)
	assert.Contains(t, stripANSI(out), `Added table widget "Holdings"`)

	widgets := listWidgets(t)
	require.Len(t, widgets, 2)
	assert.Equal(t, "IBM quote", widgets[0].Title)
	assert.Equal(t, widget.TypeTable, widgets[1].Type)
	assert.NotEmpty(t, widgets[0].ID)

	out, err = executeCommand(rootCmd, "widgets", "list")
	require.NoError(t, err)
	text := stripANSI(out)
	assert.Contains(t, text, "https://example.com/quote")
	assert.Contains(t, text, "once")

	out, err = executeCommand(rootCmd, "widgets", "show", widgets[1].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "arrayPath: holdings")

	_, err = executeCommand(rootCmd, "widgets", "rm", widgets[0].ID)
	require.NoError(t, err)

	widgets = listWidgets(t)
	require.Len(t, widgets, 1)
	assert.Equal(t, "Holdings", widgets[0].Title)
}

func TestWidgetsAddInvalid(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "widgets", "add", writeWidget(t, "bad.json", `{"title": "", "type": "gauge"}`))
	assert.Error(t, err)

	_, err = executeCommand(rootCmd, "widgets", "add", writeWidget(t, "bad.json", `{"title": "x", "type": "card", "fieldMapping": [], "apiConfig": {"url": ""}}`))
	assert.ErrorIs(t, err, widget.ErrInvalidWidget)

	assert.Empty(t, listWidgets(t))
}

func TestWidgetsRemoveUnknown(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "widgets", "remove", "missing")
	assert.ErrorContains(t, err, "failed to remove missing")
}

func TestWidgetsSQLiteStore(t *testing.T) {
	setupCLI(t)
	db := t.TempDir() + "/dash.db"

	_, err := executeCommand(rootCmd, "widgets", "add", writeWidget(t, "card.json", cardWidgetJSON("https://example.com/quote")), "--store", "sqlite", "--store-path", db)
	require.NoError(t, err)

	widgets := listWidgets(t, "--store", "sqlite", "--store-path", db)
	require.Len(t, widgets, 1)
	assert.Equal(t, "IBM quote", widgets[0].Title)

	_, statErr := os.Stat(db)
	assert.NoError(t, statErr)
}

func TestWidgetsMemoryStore(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "widgets", "add", writeWidget(t, "card.json", cardWidgetJSON("https://example.com/quote")), "--store", "memory")
	require.NoError(t, err)

	assert.Empty(t, listWidgets(t, "--store", "memory"), "memory stores do not outlive the command")
}
