package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{
			"totalWidgets": 1,
			"widgets": [{"id": "a", "title": "A", "type": "card", "fieldMapping": []}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.TotalWidgets)
		require.Len(t, cfg.Widgets, 1)
		assert.Equal(t, "a", cfg.Widgets[0].ID)
		assert.Equal(t, ConfigVersion, cfg.Version)
	})

	t.Run("total defaults to widget count", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"widgets": [
			{"id": "a", "type": "card"},
			{"id": "b", "type": "card"}
		]}`))
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.TotalWidgets)

		cfg, err = ParseConfig([]byte(`{"totalWidgets": 0, "widgets": [{"id": "a", "type": "card"}]}`))
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.TotalWidgets)
	})

	t.Run("yaml", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
version: "1.2.0"
widgets:
  - id: y1
    title: From YAML
    type: table
    fieldMapping:
      arrayPath: rows
      columns:
        - sourcePath: n
          label: N
`))
		require.NoError(t, err)
		require.Len(t, cfg.Widgets, 1)
		require.NotNil(t, cfg.Widgets[0].FieldMapping.Table)
		assert.Equal(t, "rows", cfg.Widgets[0].FieldMapping.Table.ArrayPath)
	})

	t.Run("rejects missing widgets", func(t *testing.T) {
		for _, doc := range []string{`{}`, `{"widgets": {}}`, `{"widgets": null}`, `{"widgets": "x"}`, ``} {
			_, err := ParseConfig([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig, doc)
		}
	})

	t.Run("rejects other major version", func(t *testing.T) {
		_, err := ParseConfig([]byte(`{"version": "2.0.0", "widgets": []}`))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)

		_, err = ParseConfig([]byte(`{"version": "banana", "widgets": []}`))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseConfig([]byte(`{"widgets": [`))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestEncodeConfig(t *testing.T) {
	data, err := EncodeConfig(&Config{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "1.0.0", "totalWidgets": 0, "widgets": []}`, string(data))

	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Empty(t, cfg.Widgets)
}
