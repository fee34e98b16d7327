package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
)

func TestFlatten(t *testing.T) {
	doc := jsonvalue.MustDecode(`{
		"a": {"b": [1, {"c": null}]},
		"d": "x",
		"e": [],
		"f": {},
		"g": true
	}`)

	fields := Flatten(doc)
	require.Equal(t, 4, fields.Len())

	assert.Equal(t, []Field{
		{Path: "a.b.0", Value: 1.0},
		{Path: "a.b.1.c", Value: nil},
		{Path: "d", Value: "x"},
		{Path: "g", Value: true},
	}, fields.Entries())

	v, ok := fields.Get("a.b.1.c")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = fields.Get("a.b")
	assert.False(t, ok, "containers are not emitted")

	_, ok = fields.Get("e")
	assert.False(t, ok, "empty containers are not emitted")
}

func TestFlattenScalarRoot(t *testing.T) {
	fields := Flatten(42.0)
	assert.Equal(t, []Field{{Path: "", Value: 42.0}}, fields.Entries())
}

func TestFlattenDottedKeyCollision(t *testing.T) {
	doc := jsonvalue.MustDecode(`{"a": {"b": 1}, "a.b": 2}`)

	fields := Flatten(doc)
	assert.Equal(t, 1, fields.Len())

	v, _ := fields.Get("a.b")
	assert.Equal(t, 2.0, v)
}

func TestFlattenMap(t *testing.T) {
	doc := jsonvalue.MustDecode(`{"a": {"b": "c"}, "n": 1}`)
	assert.Equal(t, map[string]any{"a.b": "c", "n": 1.0}, Flatten(doc).Map())
}

func TestWalk(t *testing.T) {
	doc := jsonvalue.MustDecode(`{"a": [{"b": 1}], "c": 2}`)

	var paths []string
	Walk(doc, func(path string, value any) bool {
		paths = append(paths, path)
		return true
	})
	assert.Equal(t, []string{"", "a", "a.0", "a.0.b", "c"}, paths)

	paths = nil
	Walk(doc, func(path string, value any) bool {
		paths = append(paths, path)
		return path != "a"
	})
	assert.Equal(t, []string{"", "a", "c"}, paths)
}
