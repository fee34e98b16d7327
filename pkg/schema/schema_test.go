package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSchema(t *testing.T) {
	output, err := GetSchema()
	require.NoError(t, err)

	assert.Equal(t, []string{"card", "table", "chart"}, output.WidgetTypes)
	assert.Equal(t, []string{"text", "number", "percent", "currency"}, output.Formats)
	assert.Equal(t, []string{"line", "candlestick"}, output.ChartTypes)
	assert.Equal(t, []string{"lexical", "time", "numeric"}, output.KeyOrders)
	assert.Equal(t, "1.0.0", output.ConfigVersion)

	var widgetSchema map[string]any
	require.NoError(t, json.Unmarshal(output.Schema, &widgetSchema))
	assert.Contains(t, string(output.Schema), "fieldMapping")
	assert.Contains(t, string(output.Schema), "apiConfig")
}

func TestGetSchemaEncodes(t *testing.T) {
	output, err := GetSchema()
	require.NoError(t, err)

	data, err := json.Marshal(output)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"schema", "config_version", "widget_types", "formats", "chart_types", "key_orders"} {
		assert.Contains(t, decoded, key)
	}
}
