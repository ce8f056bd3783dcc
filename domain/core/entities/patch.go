package entities

import (
	"encoding/json"
	"fmt"
)

// Patch is a partial payload keyed by JSON field name. Applying a patch
// replaces only the top-level fields it names.
type Patch map[string]interface{}

// ApplyPatch shallow-merges patch into a copy of data and returns the copy.
// The input payload is never modified.
func ApplyPatch(data NodeData, patch Patch) (NodeData, error) {
	if data == nil {
		return nil, fmt.Errorf("apply patch: nil node data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("apply patch: encode current data: %w", err)
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("apply patch: decode current data: %w", err)
	}
	for key, value := range patch {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("apply patch: encode field %s: %w", key, err)
		}
		merged[key] = encoded
	}
	out, err := NewNodeData(data.Kind())
	if err != nil {
		return nil, err
	}
	buf, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return nil, fmt.Errorf("apply patch to %s data: %w", data.Kind(), err)
	}
	return out, nil
}

// PatchOf converts a payload into a patch carrying every serialized field
func PatchOf(data NodeData) (Patch, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	patch := Patch{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, err
	}
	return patch, nil
}
