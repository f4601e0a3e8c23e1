// Package dataset reads and writes the JSON-lines files that connect the
// pipeline stages, and holds the in-memory record collections each stage
// produces before export.
package dataset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ahrav/go-synth/internal/domain"
)

// Row is one decoded JSON object from a dataset file. Values keep their JSON
// types (string, float64, bool, []any, map[string]any, nil).
type Row map[string]any

// Has reports whether key is present, regardless of its value.
func (r Row) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value at key rendered as text. Strings are returned
// unchanged; other JSON values are re-encoded. The second result is false
// when the key is absent.
func (r Row) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// Stringify renders a decoded JSON value as text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// RequirePresent extracts keys as text, failing with SkipMissingField when
// any is absent. Empty values are allowed.
func (r Row) RequirePresent(keys ...string) (map[string]string, domain.SkipReason) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		s, ok := r.String(k)
		if !ok {
			return nil, domain.SkipMissingField
		}
		out[k] = s
	}
	return out, ""
}

// RequireNonBlank extracts keys as text, failing with SkipMissingField for an
// absent key and SkipBlankField for an empty or whitespace-only value.
func (r Row) RequireNonBlank(keys ...string) (map[string]string, domain.SkipReason) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		s, ok := r.String(k)
		if !ok {
			return nil, domain.SkipMissingField
		}
		if strings.TrimSpace(s) == "" {
			return nil, domain.SkipBlankField
		}
		out[k] = s
	}
	return out, ""
}

// Truthy reports whether the value at key is present and non-empty in the
// loose sense: non-empty string, non-zero number, true, or non-empty
// collection.
func (r Row) Truthy(key string) bool {
	switch v := r[key].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// Decode converts the row into a typed record by re-encoding it.
func Decode[T any](r Row) (T, error) {
	var out T
	b, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode row: %w", err)
	}
	return out, nil
}
