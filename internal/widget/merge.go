package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Merge applies a partial widget document to w. Top-level members present
// in patch replace the ones of w; the id is never changed. When the patch
// changes the type it must also carry a matching fieldMapping.
func Merge(w Widget, patch []byte) (Widget, error) {
	patch = bytes.TrimSpace(patch)
	if len(patch) == 0 || patch[0] != '{' {
		return w, fmt.Errorf("%w: widget patch must be a JSON object", ErrInvalidWidget)
	}

	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return w, fmt.Errorf("%w: failed to parse widget patch: %v", ErrInvalidWidget, err)
	}

	base, err := json.Marshal(w)
	if err != nil {
		return w, fmt.Errorf("failed to encode widget: %w", err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return w, fmt.Errorf("failed to encode widget: %w", err)
	}

	for key, value := range changes {
		if key == "id" {
			continue
		}
		merged[key] = value
	}

	if _, ok := changes["type"]; ok {
		if _, ok := changes["fieldMapping"]; !ok {
			return w, fmt.Errorf("%w: changing the widget type requires a fieldMapping", ErrInvalidWidget)
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return w, fmt.Errorf("failed to merge widget: %w", err)
	}

	var out Widget
	if err := json.Unmarshal(data, &out); err != nil {
		return w, fmt.Errorf("%w: %v", ErrInvalidWidget, err)
	}
	return out, nil
}
