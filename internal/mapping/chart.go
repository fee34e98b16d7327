package mapping

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/widget"
)

// KeyField addresses the member key of a keyed series row.
const KeyField = "__key"

// SeriesType tags a chart series.
type SeriesType string

const (
	SeriesLine        SeriesType = "line"
	SeriesCandlestick SeriesType = "candlestick"
	SeriesHistogram   SeriesType = "histogram"
)

// Series is implemented by LineSeries, CandlestickSeries and
// HistogramSeries.
type Series interface {
	SeriesType() SeriesType
	Len() int
}

// LinePoint is a nullable line sample.
type LinePoint struct {
	Time  string   `json:"time"`
	Value *float64 `json:"value"`
}

// LineSeries is one y field over every row.
type LineSeries struct {
	Type  SeriesType  `json:"type"`
	Label string      `json:"label"`
	Data  []LinePoint `json:"data"`
}

func (s *LineSeries) SeriesType() SeriesType { return SeriesLine }
func (s *LineSeries) Len() int               { return len(s.Data) }

// Candle is one OHLC sample. Missing prices are null.
type Candle struct {
	Time  string   `json:"time"`
	Open  *float64 `json:"open"`
	High  *float64 `json:"high"`
	Low   *float64 `json:"low"`
	Close *float64 `json:"close"`
}

// CandlestickSeries holds the OHLC candles.
type CandlestickSeries struct {
	Type SeriesType `json:"type"`
	Data []Candle   `json:"data"`
}

func (s *CandlestickSeries) SeriesType() SeriesType { return SeriesCandlestick }
func (s *CandlestickSeries) Len() int               { return len(s.Data) }

// HistogramPoint is one volume bar.
type HistogramPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// HistogramSeries is the volume derived from a candlestick mapping.
type HistogramSeries struct {
	Type SeriesType       `json:"type"`
	Data []HistogramPoint `json:"data"`
}

func (s *HistogramSeries) SeriesType() SeriesType { return SeriesHistogram }
func (s *HistogramSeries) Len() int               { return len(s.Data) }

// ChartData is the render-ready chart.
type ChartData struct {
	Series []Series `json:"series"`
}

// KeyComparator reports whether key a sorts before key b.
type KeyComparator func(a, b string) bool

// LexicalKeys compares keys as strings. ISO-8601 timestamps sort correctly.
func LexicalKeys(a, b string) bool {
	return a < b
}

// timeLayouts are tried in order by TimeKeys.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"2 Jan 2006",
}

func parseTimeKey(key string) (time.Time, bool) {
	key = strings.TrimSpace(key)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, key); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimeKeys compares keys as timestamps. Unparseable keys sort after
// parseable ones and among themselves lexically.
func TimeKeys(a, b string) bool {
	ta, okA := parseTimeKey(a)
	tb, okB := parseTimeKey(b)
	switch {
	case okA && okB:
		if ta.Equal(tb) {
			return a < b
		}
		return ta.Before(tb)
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// NumericKeys compares keys as numbers, e.g. unix epochs. Non-numeric keys
// sort after numeric ones and among themselves lexically.
func NumericKeys(a, b string) bool {
	na, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	nb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	okA, okB := errA == nil && !math.IsNaN(na), errB == nil && !math.IsNaN(nb)
	switch {
	case okA && okB:
		if na == nb {
			return a < b
		}
		return na < nb
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// ComparatorFor returns the comparator selected by order. Unknown and empty
// orders are lexical.
func ComparatorFor(order widget.KeyOrder) KeyComparator {
	switch order {
	case widget.KeyOrderTime:
		return TimeKeys
	case widget.KeyOrderNumeric:
		return NumericKeys
	default:
		return LexicalKeys
	}
}

type chartRow struct {
	key    string
	fields *Fields
}

func (r chartRow) get(path string) any {
	if path == KeyField {
		return r.key
	}
	v, _ := r.fields.Get(path)
	return v
}

// MapChart projects the keyed series object at mapping.ArrayPath into
// chart series. Every series has one point per member of that object, in
// comparator order. A missing path or a non-object value yields no series,
// as does an unknown chart type or a mapping without y fields.
func MapChart(doc any, mapping widget.ChartFieldMapping) ChartData {
	return mapChart(doc, mapping, ComparatorFor(mapping.KeyOrder))
}

func mapChart(doc any, mapping widget.ChartFieldMapping, less KeyComparator) ChartData {
	empty := ChartData{Series: []Series{}}
	if len(mapping.YFields) == 0 {
		return empty
	}

	obj, ok := Resolve(doc, mapping.ArrayPath)
	if !ok || jsonvalue.KindOf(obj) != jsonvalue.KindObject {
		return empty
	}

	keys, _ := jsonvalue.Keys(obj)
	rows := make([]chartRow, 0, len(keys))
	for _, key := range keys {
		member, _ := jsonvalue.Field(obj, key)
		rows = append(rows, chartRow{key: key, fields: Flatten(member)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i].key, rows[j].key)
	})

	switch mapping.ChartType {
	case widget.ChartLine:
		return ChartData{Series: lineSeries(rows, mapping.YFields)}
	case widget.ChartCandlestick:
		return ChartData{Series: candlestickSeries(rows, mapping.YFields)}
	default:
		return empty
	}
}

func lineSeries(rows []chartRow, fields []widget.FieldMapping) []Series {
	series := make([]Series, 0, len(fields))
	for _, field := range fields {
		data := make([]LinePoint, len(rows))
		for i, row := range rows {
			data[i] = LinePoint{Time: row.key, Value: toNumber(row.get(field.SourcePath))}
		}
		series = append(series, &LineSeries{Type: SeriesLine, Label: field.DisplayLabel, Data: data})
	}
	return series
}

func candlestickSeries(rows []chartRow, fields []widget.FieldMapping) []Series {
	open, _ := ohlcSource(fields, "open", 0)
	high, _ := ohlcSource(fields, "high", 1)
	low, _ := ohlcSource(fields, "low", 2)
	closePath, _ := ohlcSource(fields, "close", 3)
	volume, hasVolume := ohlcSource(fields, "volume", 4)

	candles := make([]Candle, len(rows))
	for i, row := range rows {
		candles[i] = Candle{
			Time:  row.key,
			Open:  toNumber(row.get(open)),
			High:  toNumber(row.get(high)),
			Low:   toNumber(row.get(low)),
			Close: toNumber(row.get(closePath)),
		}
	}

	series := []Series{&CandlestickSeries{Type: SeriesCandlestick, Data: candles}}
	if !hasVolume {
		return series
	}

	bars := make([]HistogramPoint, len(rows))
	for i, row := range rows {
		bars[i] = HistogramPoint{Time: row.key}
		if v := toNumber(row.get(volume)); v != nil {
			bars[i].Value = *v
		}
	}
	return append(series, &HistogramSeries{Type: SeriesHistogram, Data: bars})
}

// ohlcSource finds the first field whose label contains name, ignoring
// case, and falls back to the field at position.
func ohlcSource(fields []widget.FieldMapping, name string, position int) (string, bool) {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.DisplayLabel), name) {
			return f.SourcePath, true
		}
	}
	if position < len(fields) {
		return fields[position].SourcePath, true
	}
	return "", false
}

// toNumber coerces a series value. Thousands separators and percent signs
// are stripped from strings. Anything that is not a finite number is nil.
func toNumber(raw any) *float64 {
	if raw == nil {
		return nil
	}

	var n float64
	switch v := raw.(type) {
	case string:
		cleaned := strings.TrimSpace(strings.NewReplacer(",", "", "%", "").Replace(v))
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		n = f
	case bool:
		return nil
	default:
		f, ok := jsonvalue.ToFloat(raw)
		if !ok {
			return nil
		}
		n = f
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}
