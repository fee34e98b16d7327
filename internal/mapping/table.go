package mapping

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/widget"
)

// MappedColumn describes one table column.
type MappedColumn struct {
	Key        string            `json:"key"`
	Label      string            `json:"label"`
	SourcePath string            `json:"sourcePath"`
	Format     widget.DataFormat `json:"format,omitempty"`
}

// MappedRow is one table row. Cells hold the stringified raw values keyed
// by column key; formats are applied by the renderer.
type MappedRow struct {
	ID    string            `json:"id"`
	Cells map[string]string `json:"cells"`
}

// MappedTableData is the render-ready table.
type MappedTableData struct {
	Columns     []MappedColumn `json:"columns"`
	Rows        []MappedRow    `json:"rows"`
	Total       int            `json:"total"`
	LastUpdated string         `json:"lastUpdated,omitempty"`
}

// MapTable projects the array at mapping.ArrayPath into rows. A missing or
// non-array path yields an empty table. Row ids are positional.
func MapTable(doc any, mapping widget.TableFieldMapping) MappedTableData {
	columns := ColumnKeys(mapping.Columns)

	var elems []any
	if arr, ok := Resolve(doc, mapping.ArrayPath); ok {
		elems, _ = jsonvalue.AsArray(arr)
	}

	rows := make([]MappedRow, 0, len(elems))
	for i, elem := range elems {
		var flat *Fields
		row := MappedRow{
			ID:    "row-" + strconv.Itoa(i),
			Cells: make(map[string]string, len(columns)),
		}

		for _, col := range columns {
			raw, ok := Resolve(elem, col.SourcePath)
			if !ok {
				if flat == nil {
					flat = Flatten(elem)
				}
				raw, _ = flat.Get(col.SourcePath)
			}
			row.Cells[col.Key] = cellString(raw)
		}

		rows = append(rows, row)
	}

	return MappedTableData{
		Columns:     columns,
		Rows:        rows,
		Total:       len(rows),
		LastUpdated: lastUpdated(doc),
	}
}

// ColumnKeys builds the column schema. Keys come from the explicit key or
// the slugged label; duplicates get a numeric suffix starting at _2.
func ColumnKeys(cols []widget.ColumnConfig) []MappedColumn {
	out := make([]MappedColumn, 0, len(cols))
	seen := make(map[string]bool, len(cols))

	for _, c := range cols {
		base := c.Key
		if base == "" {
			base = Slug(c.Label)
		}

		key := base
		for n := 2; seen[key]; n++ {
			key = base + "_" + strconv.Itoa(n)
		}
		seen[key] = true

		out = append(out, MappedColumn{
			Key:        key,
			Label:      c.Label,
			SourcePath: c.SourcePath,
			Format:     c.Format,
		})
	}
	return out
}

// Slug lowercases label and replaces each run of whitespace with "_".
func Slug(label string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range label {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func cellString(raw any) string {
	if raw == nil {
		return Placeholder
	}
	return jsonvalue.Stringify(raw)
}

func lastUpdated(doc any) string {
	for _, key := range []string{"last_updated", "lastUpdated"} {
		if v, ok := jsonvalue.Field(doc, key); ok && jsonvalue.IsScalar(v) {
			return jsonvalue.Stringify(v)
		}
	}
	return ""
}
