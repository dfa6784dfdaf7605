package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
)

// marshalProperties serializes a node/edge property map to JSONB, splitting
// out any []float32-valued keys (embedding vectors) so the caller can write
// them into their dedicated vector side table as well as leaving them
// present in the JSONB blob for the exact-scan search fallback (spec §4.1).
func marshalProperties(props map[string]any) (json.RawMessage, map[string][]float32, error) {
	if props == nil {
		props = map[string]any{}
	}
	embeddings := make(map[string][]float32)
	plain := make(map[string]any, len(props))
	for k, v := range props {
		if vec, ok := v.([]float32); ok && isEmbeddingPropertyName(k) {
			embeddings[k] = vec
		}
		plain[k] = v
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return nil, nil, fmt.Errorf("graphstore/postgres: marshal properties: %w", err)
	}
	return raw, embeddings, nil
}

// isEmbeddingPropertyName reports whether name follows the
// embedding_<model_id>_<dims>d convention required by spec §4.1.
func isEmbeddingPropertyName(name string) bool {
	return strings.HasPrefix(name, "embedding_") && strings.HasSuffix(name, "d")
}

// unmarshalProperties deserializes a JSONB blob back into a property map.
// Numeric values come back as float64 and embedding arrays as []any per
// encoding/json's dynamic-type rules; callers that need []float32 back use
// [asFloat32Slice].
func unmarshalProperties(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("graphstore/postgres: unmarshal properties: %w", err)
	}
	return out, nil
}

// asFloat32Slice converts a JSON-decoded []any of numbers into []float32.
// Returns (nil, false) if v is not a numeric slice.
func asFloat32Slice(v any) ([]float32, bool) {
	switch t := v.(type) {
	case []float32:
		return t, true
	case []any:
		out := make([]float32, len(t))
		for i, e := range t {
			f, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}
