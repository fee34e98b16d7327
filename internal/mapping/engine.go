package mapping

import (
	"github.com/lacquerai/dashwire/internal/widget"
)

// Result is the mapped data of one widget. Exactly one of Card, Table and
// Chart is set, selected by Kind.
type Result struct {
	Kind  widget.Type      `json:"kind"`
	Card  []CardField      `json:"card,omitempty"`
	Table *MappedTableData `json:"table,omitempty"`
	Chart *ChartData       `json:"chart,omitempty"`
}

// Empty reports whether the result carries no data.
func (r Result) Empty() bool {
	switch r.Kind {
	case widget.TypeCard:
		return len(r.Card) == 0
	case widget.TypeTable:
		return r.Table == nil || r.Table.Total == 0
	case widget.TypeChart:
		return r.Chart == nil || len(r.Chart.Series) == 0
	default:
		return true
	}
}

// Engine dispatches widget mappings to the card, table and chart mappers.
// It holds only configuration and is safe for concurrent use.
type Engine struct {
	formatter *Formatter
	less      KeyComparator
}

// Option configures an Engine.
type Option func(*Engine)

// WithFormatter sets the formatter used for card values. A nil formatter
// keeps the default.
func WithFormatter(f *Formatter) Option {
	return func(e *Engine) {
		if f != nil {
			e.formatter = f
		}
	}
}

// WithKeyComparator sets the chart key order used when a mapping does not
// name one. A nil comparator keeps lexical order.
func WithKeyComparator(less KeyComparator) Option {
	return func(e *Engine) {
		if less != nil {
			e.less = less
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		formatter: defaultFormatter,
		less:      LexicalKeys,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Formatter returns the engine's formatter.
func (e *Engine) Formatter() *Formatter {
	return e.formatter
}

// Map projects doc through m.
func (e *Engine) Map(doc any, m widget.Mapping) Result {
	result := Result{Kind: m.Kind}

	switch m.Kind {
	case widget.TypeCard:
		result.Card = e.MapCard(doc, m.Card)

	case widget.TypeTable:
		var tm widget.TableFieldMapping
		if m.Table != nil {
			tm = *m.Table
		}
		table := MapTable(doc, tm)
		result.Table = &table

	case widget.TypeChart:
		var cm widget.ChartFieldMapping
		if m.Chart != nil {
			cm = *m.Chart
		}
		chart := e.MapChart(doc, cm)
		result.Chart = &chart
	}

	return result
}

// MapChart maps a chart using the mapping's key order, or the engine's
// comparator when the mapping leaves it empty.
func (e *Engine) MapChart(doc any, m widget.ChartFieldMapping) ChartData {
	less := e.less
	if m.KeyOrder != "" {
		less = ComparatorFor(m.KeyOrder)
	}
	return mapChart(doc, m, less)
}
