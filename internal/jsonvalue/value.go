package jsonvalue

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a decoded JSON value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf reports the JSON kind of v.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case *Object:
		if t == nil {
			return KindNull
		}
		return KindObject
	case map[string]any:
		return KindObject
	default:
		return KindUnknown
	}
}

// IsContainer reports whether v is an array or an object.
func IsContainer(v any) bool {
	k := KindOf(v)
	return k == KindArray || k == KindObject
}

// IsScalar reports whether v is a non-null string, number or boolean.
func IsScalar(v any) bool {
	switch KindOf(v) {
	case KindBool, KindNumber, KindString:
		return true
	default:
		return false
	}
}

// AsArray returns v as a slice when it is a JSON array.
func AsArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

// Keys returns the member names of an object in iteration order: source
// order for *Object, sorted order for map[string]any.
func Keys(v any) ([]string, bool) {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil, false
		}
		keys := make([]string, 0, t.Len())
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		return keys, true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, true
	default:
		return nil, false
	}
}

// Field looks up a member of an object.
func Field(v any, key string) (any, bool) {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil, false
		}
		return t.Get(key)
	case map[string]any:
		val, ok := t[key]
		return val, ok
	default:
		return nil, false
	}
}

// ToFloat converts JSON numbers to float64. Strings are not parsed.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify renders v the way a JavaScript String() call would for
// scalars. Containers are rendered as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}

	if f, ok := ToFloat(v); ok {
		return FormatNumber(f)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// FormatNumber renders f without a fixed precision, switching to exponent
// notation outside [1e-6, 1e21) like JavaScript does.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Go pads exponents to two digits ("1e-07"); JavaScript does not.
	if i := strings.IndexByte(s, 'e'); i >= 0 && i+2 < len(s) && s[i+2] == '0' {
		s = s[:i+2] + s[i+3:]
	}
	return s
}
