package widget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	data, err := NewSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "totalWidgets")
	assert.Contains(t, props, "widgets")

	text := string(data)
	assert.Contains(t, text, `"sourcePath"`)
	assert.Contains(t, text, `"oneOf"`)
	assert.Contains(t, text, `"candlestick"`)
	assert.Contains(t, text, "Zero fetches once.")
}
