// Package mapping projects decoded JSON documents into render-ready widget
// data. Every function here is pure: documents and mappings are only read,
// misses degrade to absent values and nothing returns an error.
package mapping

import (
	"strconv"
	"strings"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
)

// PathSeparator joins path segments. Keys containing it are kept literally
// and cannot be told apart from a nesting boundary.
const PathSeparator = "."

// Resolve walks path through doc. Numeric segments index arrays, any other
// segment is an object key. The second result is false when some segment
// misses. An empty path resolves to doc itself.
func Resolve(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}

	current := doc
	for _, segment := range strings.Split(path, PathSeparator) {
		if current == nil {
			return nil, false
		}

		if arr, ok := jsonvalue.AsArray(current); ok {
			idx, ok := parseIndex(segment)
			if !ok || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
			continue
		}

		next, ok := jsonvalue.Field(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}

	return current, true
}

// parseIndex accepts only plain non-negative decimal integers.
func parseIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for i := 0; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + PathSeparator + segment
}
