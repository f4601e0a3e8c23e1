package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationResult is the judge's structured verdict on a single extraction.
// Booleans are pointers so an absent key is distinguishable from false.
type ValidationResult struct {
	IsComplete      *bool    `json:"is_complete"`
	IsAccurate      *bool    `json:"is_accurate"`
	FormatValid     *bool    `json:"format_valid"`
	MissingFields   []string `json:"missing_fields"`
	IncorrectFields []string `json:"incorrect_fields"`
}

// Accepted reports whether the verdict is fully positive: accurate, well
// formatted, and with nothing missing or incorrect. Completeness is recorded
// but not required.
func (r *ValidationResult) Accepted() bool {
	if r == nil {
		return false
	}
	return isTrue(r.IsAccurate) &&
		isTrue(r.FormatValid) &&
		len(r.MissingFields) == 0 &&
		len(r.IncorrectFields) == 0
}

func isTrue(b *bool) bool { return b != nil && *b }

// ParseValidationResult decodes a validation_result value as found in a
// dataset row. A string payload is trimmed and parsed as JSON; an object that
// was already decoded is re-encoded and parsed. Anything else is rejected.
func ParseValidationResult(raw any) (*ValidationResult, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(strings.TrimSpace(v))
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValidationResult, err)
		}
		data = b
	default:
		return nil, fmt.Errorf("%w: unexpected type %T", ErrInvalidValidationResult, raw)
	}

	var res ValidationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValidationResult, err)
	}
	return &res, nil
}

// String renders the verdict as compact JSON, the form stored in
// Validation.ValidationResult.
func (r *ValidationResult) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}
