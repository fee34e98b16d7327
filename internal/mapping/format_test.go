package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/widget"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name   string
		format widget.DataFormat
		raw    any
		want   string
	}{
		{"null", widget.FormatNumber, nil, "-"},
		{"text string", widget.FormatText, "hello", "hello"},
		{"text number", widget.FormatText, 12.5, "12.5"},
		{"text bool", widget.FormatText, false, "false"},
		{"text numeric string is not coerced", widget.FormatText, "1234567", "1234567"},
		{"percent fraction", widget.FormatPercent, 0.1534, "15.34%"},
		{"percent value", widget.FormatPercent, 45.2, "45.20%"},
		{"percent boundary", widget.FormatPercent, 1.0, "100.00%"},
		{"percent negative fraction", widget.FormatPercent, -0.5, "-50.00%"},
		{"percent string", widget.FormatPercent, "0.25", "25.00%"},
		{"percent fallback", widget.FormatPercent, "n/a", "n/a"},
		{"number string", widget.FormatNumber, "1234567", "1,234,567"},
		{"number float", widget.FormatNumber, 1234.5678, "1,234.568"},
		{"number padded string", widget.FormatNumber, " 42 ", "42"},
		{"number fallback", widget.FormatNumber, "abc", "abc"},
		{"number partial parse", widget.FormatNumber, "12abc", "12abc"},
		{"number blank", widget.FormatNumber, "  ", "  "},
		{"number bool", widget.FormatNumber, true, "true"},
		{"number infinity string", widget.FormatNumber, "Infinity", "Infinity"},
		{"currency", widget.FormatCurrency, 98765.4, "98,765.4"},
		{"currency fallback", widget.FormatCurrency, "free", "free"},
		{"unknown format", widget.DataFormat("date"), 3.0, "3"},
		{"empty format", widget.DataFormat(""), "x", "x"},
		{"container", widget.FormatText, []any{1.0, "a"}, `[1,"a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.format, tt.raw))
		})
	}
}

func TestFormatterCurrencySymbol(t *testing.T) {
	f := NewFormatter(WithCurrencySymbol("$"))

	assert.Equal(t, "$1,234.5", f.Format(widget.FormatCurrency, 1234.5))
	assert.Equal(t, "-$10", f.Format(widget.FormatCurrency, "-10"))
	assert.Equal(t, "n/a", f.Format(widget.FormatCurrency, "n/a"))
	assert.Equal(t, "1,000", f.Format(widget.FormatNumber, 1000.0))
}

func TestFormatterLocale(t *testing.T) {
	f := NewFormatter(WithLocale(language.German))

	assert.Equal(t, language.German, f.Locale())
	assert.Equal(t, "1.234.567,5", f.Format(widget.FormatNumber, 1234567.5))
}

func TestFormatDecodedDocument(t *testing.T) {
	doc := jsonvalue.MustDecode(`{"rate": "0.0042", "volume": 1500000}`)

	rate, _ := Resolve(doc, "rate")
	volume, _ := Resolve(doc, "volume")

	assert.Equal(t, "0.42%", FormatValue(widget.FormatPercent, rate))
	assert.Equal(t, "1,500,000", FormatValue(widget.FormatNumber, volume))
}
