package widget

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is the widget kind. It also discriminates the shape of FieldMapping.
type Type string

const (
	TypeCard  Type = "card"
	TypeTable Type = "table"
	TypeChart Type = "chart"
)

// IsValid reports whether t is a known widget kind.
func (t Type) IsValid() bool {
	switch t {
	case TypeCard, TypeTable, TypeChart:
		return true
	}
	return false
}

// DataFormat selects how a raw value is rendered for display.
type DataFormat string

const (
	FormatText     DataFormat = "text"
	FormatNumber   DataFormat = "number"
	FormatPercent  DataFormat = "percent"
	FormatCurrency DataFormat = "currency"
)

// IsValid reports whether f is a known format. The empty format is
// accepted and treated as text.
func (f DataFormat) IsValid() bool {
	switch f {
	case "", FormatText, FormatNumber, FormatPercent, FormatCurrency:
		return true
	}
	return false
}

// ChartType selects the series a chart widget produces.
type ChartType string

const (
	ChartLine        ChartType = "line"
	ChartCandlestick ChartType = "candlestick"
)

// KeyOrder selects how the keys of a keyed time series are sorted.
type KeyOrder string

const (
	// KeyOrderLexical sorts keys as plain strings. Correct for ISO-8601.
	KeyOrderLexical KeyOrder = "lexical"
	// KeyOrderTime parses keys as timestamps before comparing them.
	KeyOrderTime KeyOrder = "time"
	// KeyOrderNumeric compares keys as numbers (unix epochs, sequence ids).
	KeyOrderNumeric KeyOrder = "numeric"
)

// Position is the grid placement of a widget. It is stored verbatim.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// APIConfig describes the endpoint a widget polls.
type APIConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	// RefreshInterval is in milliseconds. Zero fetches once.
	RefreshInterval int `json:"refreshInterval"`
}

// FieldMapping binds one source path to a label and a display format.
type FieldMapping struct {
	SourcePath   string     `json:"sourcePath"`
	DisplayLabel string     `json:"displayLabel"`
	Format       DataFormat `json:"format"`
}

// ColumnConfig is one table column.
type ColumnConfig struct {
	SourcePath string     `json:"sourcePath"`
	Label      string     `json:"label"`
	Format     DataFormat `json:"format,omitempty"`
	// Key overrides the slug derived from Label.
	Key string `json:"key,omitempty"`
}

// UnmarshalJSON accepts "displayLabel" as an alias of "label"; older
// exports spell columns like card fields.
func (c *ColumnConfig) UnmarshalJSON(data []byte) error {
	var aux struct {
		SourcePath   string     `json:"sourcePath"`
		Label        string     `json:"label"`
		DisplayLabel string     `json:"displayLabel"`
		Format       DataFormat `json:"format"`
		Key          string     `json:"key"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.SourcePath = aux.SourcePath
	c.Label = aux.Label
	if c.Label == "" {
		c.Label = aux.DisplayLabel
	}
	c.Format = aux.Format
	c.Key = aux.Key
	return nil
}

// TableFieldMapping projects an array into rows.
type TableFieldMapping struct {
	ArrayPath string         `json:"arrayPath"`
	Columns   []ColumnConfig `json:"columns"`
}

// ChartFieldMapping projects a keyed time series into chart series.
type ChartFieldMapping struct {
	ArrayPath string         `json:"arrayPath"`
	ChartType ChartType      `json:"chartType" jsonschema:"enum=line,enum=candlestick"`
	YFields   []FieldMapping `json:"yFields"`
	KeyOrder  KeyOrder       `json:"keyOrder,omitempty" jsonschema:"enum=lexical,enum=time,enum=numeric"`
}

// UnmarshalJSON accepts the legacy "xFieldPath" spelling of ArrayPath.
func (c *ChartFieldMapping) UnmarshalJSON(data []byte) error {
	var aux struct {
		ArrayPath  string         `json:"arrayPath"`
		XFieldPath string         `json:"xFieldPath"`
		ChartType  ChartType      `json:"chartType"`
		YFields    []FieldMapping `json:"yFields"`
		KeyOrder   KeyOrder       `json:"keyOrder"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.ArrayPath = aux.ArrayPath
	if c.ArrayPath == "" {
		c.ArrayPath = aux.XFieldPath
	}
	c.ChartType = aux.ChartType
	c.YFields = aux.YFields
	c.KeyOrder = aux.KeyOrder
	return nil
}

// Mapping is the field mapping of a widget: exactly one of Card, Table or
// Chart is set, selected by Kind.
type Mapping struct {
	Kind  Type
	Card  []FieldMapping
	Table *TableFieldMapping
	Chart *ChartFieldMapping
}

// CardMapping builds a card Mapping.
func CardMapping(fields ...FieldMapping) Mapping {
	return Mapping{Kind: TypeCard, Card: fields}
}

// TableMapping builds a table Mapping.
func TableMapping(m TableFieldMapping) Mapping {
	return Mapping{Kind: TypeTable, Table: &m}
}

// ChartMapping builds a chart Mapping.
func ChartMapping(m ChartFieldMapping) Mapping {
	return Mapping{Kind: TypeChart, Chart: &m}
}

// MarshalJSON writes the variant selected by Kind.
func (m Mapping) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case TypeCard:
		if m.Card == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(m.Card)
	case TypeTable:
		return json.Marshal(m.Table)
	case TypeChart:
		return json.Marshal(m.Chart)
	default:
		return []byte("null"), nil
	}
}

// DecodeMapping decodes raw according to kind.
func DecodeMapping(kind Type, raw json.RawMessage) (Mapping, error) {
	m := Mapping{Kind: kind}
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}

	switch kind {
	case TypeCard:
		if err := json.Unmarshal(raw, &m.Card); err != nil {
			return m, fmt.Errorf("card field mapping: %w", err)
		}
	case TypeTable:
		m.Table = &TableFieldMapping{}
		if err := json.Unmarshal(raw, m.Table); err != nil {
			return m, fmt.Errorf("table field mapping: %w", err)
		}
	case TypeChart:
		m.Chart = &ChartFieldMapping{}
		if err := json.Unmarshal(raw, m.Chart); err != nil {
			return m, fmt.Errorf("chart field mapping: %w", err)
		}
	default:
		return m, fmt.Errorf("unknown widget type %q", kind)
	}

	return m, nil
}

// Widget is one dashboard tile.
type Widget struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         Type      `json:"type" jsonschema:"enum=card,enum=table,enum=chart"`
	Position     Position  `json:"position"`
	FieldMapping Mapping   `json:"fieldMapping"`
	APIConfig    APIConfig `json:"apiConfig"`
}

// UnmarshalJSON decodes the field mapping using Type as discriminator.
func (w *Widget) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID           string          `json:"id"`
		Title        string          `json:"title"`
		Type         Type            `json:"type"`
		Position     Position        `json:"position"`
		FieldMapping json.RawMessage `json:"fieldMapping"`
		APIConfig    APIConfig       `json:"apiConfig"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	kind := Type(strings.ToLower(string(aux.Type)))
	mapping, err := DecodeMapping(kind, aux.FieldMapping)
	if err != nil {
		return fmt.Errorf("widget %q: %w", aux.ID, err)
	}

	*w = Widget{
		ID:           aux.ID,
		Title:        aux.Title,
		Type:         kind,
		Position:     aux.Position,
		FieldMapping: mapping,
		APIConfig:    aux.APIConfig,
	}
	return nil
}

// RefreshInterval returns the polling interval in milliseconds.
func (w *Widget) RefreshInterval() int {
	return w.APIConfig.RefreshInterval
}

// Config is the persisted dashboard document.
type Config struct {
	// Version is the config format version, e.g. "1.0.0".
	Version      string   `json:"version,omitempty"`
	TotalWidgets int      `json:"totalWidgets"`
	Widgets      []Widget `json:"widgets"`
}
