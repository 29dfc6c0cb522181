package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeObject marshals fields and checks that the result is a JSON object.
func encodeObject(fields any) (json.RawMessage, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, fmt.Errorf("encode fields: document body must be a JSON object")
	}
	return b, nil
}

// mergeJSON overlays the top-level keys of patch onto base.
func mergeJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	var dst map[string]json.RawMessage
	if err := json.Unmarshal(base, &dst); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if dst == nil {
		dst = make(map[string]json.RawMessage)
	}
	var src map[string]json.RawMessage
	if err := json.Unmarshal(patch, &src); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	for k, v := range src {
		dst[k] = v
	}
	return json.Marshal(dst)
}

// matchField reports whether data has a top-level field equal to value.
// Both sides are compared in their canonical JSON encoding.
func matchField(data json.RawMessage, field string, value any) (bool, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode query value: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	got, ok := doc[field]
	if !ok {
		return false, nil
	}
	return canonicalEqual(got, want), nil
}

func canonicalEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	ab, _ := json.Marshal(av)
	bb, _ := json.Marshal(bv)
	return bytes.Equal(ab, bb)
}
