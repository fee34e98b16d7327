package mapping

import (
	"github.com/lacquerai/dashwire/internal/widget"
)

// CardField is one key/value row of a card widget.
type CardField struct {
	Label          string `json:"label"`
	SourcePath     string `json:"sourcePath"`
	RawValue       any    `json:"rawValue"`
	FormattedValue string `json:"formattedValue"`
}

// MapCard maps fields against doc. The result has one entry per field in
// the same order; fields missing from doc render as Placeholder.
func (e *Engine) MapCard(doc any, fields []widget.FieldMapping) []CardField {
	flat := Flatten(doc)

	out := make([]CardField, 0, len(fields))
	for _, field := range fields {
		raw, _ := flat.Get(field.SourcePath)
		out = append(out, CardField{
			Label:          field.DisplayLabel,
			SourcePath:     field.SourcePath,
			RawValue:       raw,
			FormattedValue: e.formatter.Format(field.Format, raw),
		})
	}
	return out
}

// MapCard maps fields with the default engine.
func MapCard(doc any, fields []widget.FieldMapping) []CardField {
	return defaultEngine.MapCard(doc, fields)
}
