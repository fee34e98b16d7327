package mapping

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/widget"
)

// Placeholder is rendered for absent and null values.
const Placeholder = "-"

// maxFractionDigits matches the default of a browser number formatter.
const maxFractionDigits = 3

// Formatter renders raw values for display. It is safe for concurrent use.
type Formatter struct {
	tag            language.Tag
	printer        *message.Printer
	currencySymbol string
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithLocale sets the locale used for digit grouping.
func WithLocale(tag language.Tag) FormatterOption {
	return func(f *Formatter) {
		f.tag = tag
	}
}

// WithCurrencySymbol prefixes currency values with symbol.
func WithCurrencySymbol(symbol string) FormatterOption {
	return func(f *Formatter) {
		f.currencySymbol = symbol
	}
}

// NewFormatter creates a Formatter. The default locale is en-US.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{tag: language.AmericanEnglish}
	for _, opt := range opts {
		opt(f)
	}
	f.printer = message.NewPrinter(f.tag)
	return f
}

// Locale returns the formatter's locale.
func (f *Formatter) Locale() language.Tag {
	return f.tag
}

var defaultFormatter = NewFormatter()

// FormatValue formats raw with the default en-US formatter.
func FormatValue(format widget.DataFormat, raw any) string {
	return defaultFormatter.Format(format, raw)
}

// Format renders raw according to format. Absent and null values render as
// Placeholder. Numeric formats fall back to the raw string when raw is not
// numeric. Format never panics.
func (f *Formatter) Format(format widget.DataFormat, raw any) string {
	if raw == nil {
		return Placeholder
	}

	switch format {
	case widget.FormatText:
		return jsonvalue.Stringify(raw)

	case widget.FormatNumber:
		if n, ok := coerceNumber(raw); ok {
			return f.grouped(n)
		}

	case widget.FormatPercent:
		if n, ok := coerceNumber(raw); ok {
			if math.Abs(n) <= 1 {
				n *= 100
			}
			return strconv.FormatFloat(n, 'f', 2, 64) + "%"
		}

	case widget.FormatCurrency:
		if n, ok := coerceNumber(raw); ok {
			if f.currencySymbol == "" {
				return f.grouped(n)
			}
			if n < 0 {
				return "-" + f.currencySymbol + f.grouped(-n)
			}
			return f.currencySymbol + f.grouped(n)
		}
	}

	return jsonvalue.Stringify(raw)
}

func (f *Formatter) grouped(n float64) string {
	return f.printer.Sprint(number.Decimal(n, number.MaxFractionDigits(maxFractionDigits)))
}

// coerceNumber accepts numbers and strings that parse in full, ignoring
// surrounding whitespace, as a finite number. Blank strings are not numbers.
func coerceNumber(raw any) (float64, bool) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}

	n, ok := jsonvalue.ToFloat(raw)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
