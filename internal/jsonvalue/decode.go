// Package jsonvalue holds the JSON document model shared by the mapping
// engine, the fetcher and the HTTP API.
//
// Documents decode into nil, bool, float64, string, []any or *Object.
// Numbers beyond the float64 range stay json.Number. Object keeps the key
// order of the source document, which matters for chart field discovery: the
// first member of a keyed time series is the one the API sent first. Plain map[string]any values are accepted by every helper as well and
// are iterated in sorted key order.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object that remembers insertion order.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// ErrTrailingData is returned when a document is followed by more JSON.
var ErrTrailingData = errors.New("unexpected data after top-level value")

// Decode reads exactly one JSON document from r.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return nil, ErrTrailingData
	}

	return value, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (any, error) {
	return Decode(bytes.NewReader(data))
}

// MustDecode decodes a literal document and panics on error. Intended for
// tests and embedded fixtures.
func MustDecode(s string) any {
	v, err := DecodeBytes([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("jsonvalue: %v", err))
	}
	return v
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("json: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("json: %w", err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("json: unexpected delimiter %q", t)
	case json.Number:
		f, err := t.Float64()
		if errors.Is(err, strconv.ErrRange) {
			// Out of float64 range: kept verbatim so the document still
			// decodes and re-encodes as valid JSON.
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("json: number %s: %w", t, err)
		}
		return f, nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, fmt.Errorf("json: unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (any, error) {
	obj := NewObject()

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("json: expected object key, got %v", keyTok)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}

	if end, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("json: read object end: %w", err)
	} else if end != json.Delim('}') {
		return nil, fmt.Errorf("json: expected object end '}', got %v", end)
	}

	return obj, nil
}

func decodeArray(dec *json.Decoder) (any, error) {
	arr := make([]any, 0)

	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
	}

	if end, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("json: read array end: %w", err)
	} else if end != json.Delim(']') {
		return nil, fmt.Errorf("json: expected array end ']', got %v", end)
	}

	return arr, nil
}
