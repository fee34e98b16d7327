// Package schema provides access to dashwire widget definitions and metadata.
// This package enables third-party applications to introspect the widget
// format, including the JSON schema of a widget definition and the values
// accepted by its enumerated fields.
//
// The schema information is useful for:
//   - Building dashboard editors with validation and autocompletion
//   - Validating widget files before importing them
//   - Generating documentation for the widget format
//
// Example usage:
//
//	schema, err := GetSchema()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	var widgetSchema map[string]interface{}
//	json.Unmarshal(schema.Schema, &widgetSchema)
//
//	for _, format := range schema.Formats {
//		fmt.Println(format)
//	}
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/lacquerai/dashwire/internal/widget"
)

// SchemaOutput represents the complete schema information for widgets.
type SchemaOutput struct {
	// Schema contains the JSON Schema definition of one widget. It can be
	// used to validate widget JSON/YAML files in editors.
	Schema json.RawMessage `json:"schema"`

	// ConfigVersion is the dashboard config format written by exports.
	// Imports accept any config with the same major version.
	ConfigVersion string `json:"config_version"`

	// WidgetTypes lists the widget kinds. The kind selects the shape of
	// the widget's fieldMapping.
	WidgetTypes []string `json:"widget_types"`

	// Formats lists the display formats a mapped field can use.
	Formats []string `json:"formats"`

	// ChartTypes lists the series a chart widget can produce.
	ChartTypes []string `json:"chart_types"`

	// KeyOrders lists how the keys of a keyed time series can be sorted.
	KeyOrders []string `json:"key_orders"`
}

// GetSchema retrieves the complete schema information for widgets.
//
// Returns:
//   - *SchemaOutput: the widget JSON schema and the enumerated values
//   - error: any error that occurred during schema generation
func GetSchema() (*SchemaOutput, error) {
	schemaBytes, err := widget.NewSchema()
	if err != nil {
		return nil, fmt.Errorf("error creating widget schema: %w", err)
	}

	return &SchemaOutput{
		Schema:        json.RawMessage(schemaBytes),
		ConfigVersion: widget.ConfigVersion,
		WidgetTypes:   []string{string(widget.TypeCard), string(widget.TypeTable), string(widget.TypeChart)},
		Formats: []string{
			string(widget.FormatText),
			string(widget.FormatNumber),
			string(widget.FormatPercent),
			string(widget.FormatCurrency),
		},
		ChartTypes: []string{string(widget.ChartLine), string(widget.ChartCandlestick)},
		KeyOrders:  []string{string(widget.KeyOrderLexical), string(widget.KeyOrderTime), string(widget.KeyOrderNumeric)},
	}, nil
}
