package widget

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidWidget is wrapped by every error describing a malformed widget.
var ErrInvalidWidget = errors.New("validation failed")

// ValidationError represents a validation error
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	if ve.Path != "" {
		return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
	}
	return ve.Message
}

// ValidationResult contains the results of widget validation
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error
func (vr *ValidationResult) AddError(path, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, &ValidationError{
		Path:    path,
		Message: message,
	})
}

// AddFieldError adds a validation error for a specific field
func (vr *ValidationResult) AddFieldError(path, field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, &ValidationError{
		Path:    path,
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ToError returns a combined error if there are validation errors
func (vr *ValidationResult) ToError() error {
	if !vr.HasErrors() {
		return nil
	}

	var messages []string
	for _, err := range vr.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Errorf("%w: %s", ErrInvalidWidget, strings.Join(messages, "; "))
}

// Validate checks a widget before it is stored or mapped. The mapping engine
// itself tolerates every malformed mapping; this is the upstream gate.
func Validate(w *Widget) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(w.Title) == "" {
		result.AddFieldError("widget", "title", "title is required")
	}

	if !w.Type.IsValid() {
		result.AddFieldError("widget", "type", fmt.Sprintf("unknown widget type %q (expected card, table or chart)", w.Type))
		return result
	}

	if w.FieldMapping.Kind != w.Type {
		result.AddFieldError("widget", "fieldMapping", fmt.Sprintf("field mapping is for %q but widget type is %q", w.FieldMapping.Kind, w.Type))
		return result
	}

	validateAPIConfig(result, &w.APIConfig)
	validateMapping(result, w.FieldMapping)

	return result
}

func validateAPIConfig(result *ValidationResult, cfg *APIConfig) {
	if cfg.URL == "" {
		result.AddFieldError("apiConfig", "url", "url is required")
	} else if u, err := url.Parse(cfg.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result.AddFieldError("apiConfig", "url", fmt.Sprintf("invalid url %q", cfg.URL))
	}

	if cfg.RefreshInterval < 0 {
		result.AddFieldError("apiConfig", "refreshInterval", "refresh interval cannot be negative")
	}
}

func validateMapping(result *ValidationResult, m Mapping) {
	switch m.Kind {
	case TypeCard:
		if len(m.Card) == 0 {
			result.AddError("fieldMapping", "at least one field is required")
		}
		for i, f := range m.Card {
			validateField(result, fmt.Sprintf("fieldMapping[%d]", i), f)
		}

	case TypeTable:
		if m.Table == nil {
			result.AddError("fieldMapping", "table mapping is required")
			return
		}
		if len(m.Table.Columns) == 0 {
			result.AddFieldError("fieldMapping", "columns", "at least one column is required")
		}
		for i, c := range m.Table.Columns {
			path := fmt.Sprintf("fieldMapping.columns[%d]", i)
			if c.SourcePath == "" && c.Key == "" && c.Label == "" {
				result.AddError(path, "column needs a source path and a label")
			}
			if !c.Format.IsValid() {
				result.AddFieldError(path, "format", fmt.Sprintf("unknown format %q", c.Format))
			}
		}

	case TypeChart:
		if m.Chart == nil {
			result.AddError("fieldMapping", "chart mapping is required")
			return
		}
		if m.Chart.ArrayPath == "" {
			result.AddFieldError("fieldMapping", "arrayPath", "a keyed series object must be selected")
		}
		switch m.Chart.ChartType {
		case ChartLine, ChartCandlestick:
		default:
			result.AddFieldError("fieldMapping", "chartType", fmt.Sprintf("unknown chart type %q", m.Chart.ChartType))
		}
		switch m.Chart.KeyOrder {
		case "", KeyOrderLexical, KeyOrderTime, KeyOrderNumeric:
		default:
			result.AddFieldError("fieldMapping", "keyOrder", fmt.Sprintf("unknown key order %q", m.Chart.KeyOrder))
		}
		if len(m.Chart.YFields) == 0 {
			result.AddFieldError("fieldMapping", "yFields", "at least one y field is required")
		}
		for i, f := range m.Chart.YFields {
			validateField(result, fmt.Sprintf("fieldMapping.yFields[%d]", i), f)
		}
	}
}

func validateField(result *ValidationResult, path string, f FieldMapping) {
	if f.SourcePath == "" {
		result.AddFieldError(path, "sourcePath", "source path is required")
	}
	if !f.Format.IsValid() {
		result.AddFieldError(path, "format", fmt.Sprintf("unknown format %q", f.Format))
	}
}
