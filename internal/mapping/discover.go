package mapping

import (
	"strings"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/widget"
)

// Selection is the state of the field selection wizard.
type Selection struct {
	Kind widget.Type `json:"kind"`
	// ArrayPath is the array chosen for a table widget.
	ArrayPath string `json:"arrayPath,omitempty"`
	// ObjectPath is the keyed series object chosen for a chart widget.
	ObjectPath string `json:"objectPath,omitempty"`
}

// FlattenedField is a selectable candidate path.
type FlattenedField struct {
	Path    string `json:"path"`
	Value   any    `json:"value"`
	Type    string `json:"type"`
	IsArray bool   `json:"isArray"`
}

// Discover lists the fields selectable for sel. Table and chart discovery
// happen in two steps: first the container is chosen, then its fields are
// listed from the first element (table) or first member (chart). Schemas
// are inferred from that single sample only.
func Discover(doc any, sel Selection) []FlattenedField {
	switch sel.Kind {
	case widget.TypeCard:
		return scalarFields(doc)

	case widget.TypeTable:
		if sel.ArrayPath == "" {
			return arrayFields(doc)
		}
		arr, _ := Resolve(doc, sel.ArrayPath)
		elems, ok := jsonvalue.AsArray(arr)
		if !ok || len(elems) == 0 {
			return []FlattenedField{}
		}
		return scalarFields(elems[0])

	case widget.TypeChart:
		if sel.ObjectPath == "" {
			return objectFields(doc)
		}
		obj, _ := Resolve(doc, sel.ObjectPath)
		if jsonvalue.KindOf(obj) != jsonvalue.KindObject {
			return []FlattenedField{}
		}
		keys, _ := jsonvalue.Keys(obj)
		if len(keys) == 0 {
			return []FlattenedField{}
		}
		first, _ := jsonvalue.Field(obj, keys[0])
		return scalarFields(first)
	}

	return []FlattenedField{}
}

func scalarFields(doc any) []FlattenedField {
	fields := []FlattenedField{}
	for _, f := range Flatten(doc).Entries() {
		if !jsonvalue.IsScalar(f.Value) {
			continue
		}
		fields = append(fields, FlattenedField{
			Path:  f.Path,
			Value: f.Value,
			Type:  jsonvalue.KindOf(f.Value).String(),
		})
	}
	return fields
}

// arrayFields lists every array in doc, nested ones included.
func arrayFields(doc any) []FlattenedField {
	fields := []FlattenedField{}
	Walk(doc, func(path string, value any) bool {
		if path != "" && jsonvalue.KindOf(value) == jsonvalue.KindArray {
			fields = append(fields, FlattenedField{
				Path:    path,
				Value:   value,
				Type:    jsonvalue.KindArray.String(),
				IsArray: true,
			})
		}
		return true
	})
	return fields
}

// objectFields lists the object-valued members of the document root.
func objectFields(doc any) []FlattenedField {
	fields := []FlattenedField{}
	keys, _ := jsonvalue.Keys(doc)
	for _, key := range keys {
		value, _ := jsonvalue.Field(doc, key)
		if jsonvalue.KindOf(value) != jsonvalue.KindObject {
			continue
		}
		fields = append(fields, FlattenedField{
			Path:  key,
			Value: value,
			Type:  jsonvalue.KindObject.String(),
		})
	}
	return fields
}

// FilterFields keeps the fields whose path or stringified value contains
// query, ignoring case. An empty query keeps everything.
func FilterFields(fields []FlattenedField, query string) []FlattenedField {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return fields
	}

	out := []FlattenedField{}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Path), query) ||
			strings.Contains(strings.ToLower(jsonvalue.Stringify(f.Value)), query) {
			out = append(out, f)
		}
	}
	return out
}

// SelectedPaths returns the source paths a mapping already uses, including
// the chosen table array or chart object.
func SelectedPaths(m widget.Mapping) map[string]bool {
	paths := make(map[string]bool)
	switch m.Kind {
	case widget.TypeCard:
		for _, f := range m.Card {
			paths[f.SourcePath] = true
		}
	case widget.TypeTable:
		if m.Table != nil {
			if m.Table.ArrayPath != "" {
				paths[m.Table.ArrayPath] = true
			}
			for _, c := range m.Table.Columns {
				paths[c.SourcePath] = true
			}
		}
	case widget.TypeChart:
		if m.Chart != nil {
			if m.Chart.ArrayPath != "" {
				paths[m.Chart.ArrayPath] = true
			}
			for _, f := range m.Chart.YFields {
				paths[f.SourcePath] = true
			}
		}
	}
	return paths
}
