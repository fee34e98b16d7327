package mapping

import (
	"strconv"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
)

// Field is one flattened leaf.
type Field struct {
	Path  string
	Value any
}

// Fields is the result of Flatten: leaves in document order with lookup by
// path.
type Fields struct {
	entries []Field
	index   map[string]int
}

// Get returns the leaf stored at path.
func (f *Fields) Get(path string) (any, bool) {
	if f == nil || f.index == nil {
		return nil, false
	}
	i, ok := f.index[path]
	if !ok {
		return nil, false
	}
	return f.entries[i].Value, true
}

// Len returns the number of leaves.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

// Entries returns the leaves in document order.
func (f *Fields) Entries() []Field {
	if f == nil {
		return nil
	}
	out := make([]Field, len(f.entries))
	copy(out, f.entries)
	return out
}

// Map returns the leaves as a plain map.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, f.Len())
	if f == nil {
		return out
	}
	for _, e := range f.entries {
		out[e.Path] = e.Value
	}
	return out
}

func (f *Fields) add(path string, value any) {
	if i, ok := f.index[path]; ok {
		// A literal dotted key collided with a nested path; last one wins.
		f.entries[i].Value = value
		return
	}
	f.index[path] = len(f.entries)
	f.entries = append(f.entries, Field{Path: path, Value: value})
}

// Flatten returns every scalar or null leaf of doc keyed by its dotted path.
// Object keys and array indices both become path segments. Containers are
// not emitted themselves and empty containers contribute nothing. A scalar
// root yields a single entry with the empty path.
func Flatten(doc any) *Fields {
	fields := &Fields{index: make(map[string]int)}
	Walk(doc, func(path string, value any) bool {
		if !jsonvalue.IsContainer(value) {
			fields.add(path, value)
		}
		return true
	})
	return fields
}

// Walk visits doc depth-first, calling fn for every node including
// containers, parents before children. Returning false from fn skips the
// node's children.
func Walk(doc any, fn func(path string, value any) bool) {
	walk("", doc, fn)
}

func walk(path string, value any, fn func(string, any) bool) {
	if !fn(path, value) {
		return
	}

	if arr, ok := jsonvalue.AsArray(value); ok {
		for i, elem := range arr {
			walk(joinPath(path, strconv.Itoa(i)), elem, fn)
		}
		return
	}

	keys, ok := jsonvalue.Keys(value)
	if !ok {
		return
	}
	for _, key := range keys {
		child, _ := jsonvalue.Field(value, key)
		walk(joinPath(path, key), child, fn)
	}
}
