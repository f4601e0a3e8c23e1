package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestValidationResult_Accepted(t *testing.T) {
	tests := []struct {
		name string
		res  *ValidationResult
		want bool
	}{
		{
			name: "fully positive",
			res: &ValidationResult{
				IsComplete:  boolPtr(true),
				IsAccurate:  boolPtr(true),
				FormatValid: boolPtr(true),
			},
			want: true,
		},
		{
			name: "incomplete is still accepted",
			res: &ValidationResult{
				IsComplete:  boolPtr(false),
				IsAccurate:  boolPtr(true),
				FormatValid: boolPtr(true),
			},
			want: true,
		},
		{
			name: "inaccurate",
			res: &ValidationResult{
				IsComplete:  boolPtr(true),
				IsAccurate:  boolPtr(false),
				FormatValid: boolPtr(true),
			},
		},
		{
			name: "invalid format",
			res: &ValidationResult{
				IsComplete:  boolPtr(true),
				IsAccurate:  boolPtr(true),
				FormatValid: boolPtr(false),
			},
		},
		{
			name: "missing fields reported",
			res: &ValidationResult{
				IsAccurate:    boolPtr(true),
				FormatValid:   boolPtr(true),
				MissingFields: []string{"total"},
			},
		},
		{
			name: "incorrect fields reported",
			res: &ValidationResult{
				IsAccurate:      boolPtr(true),
				FormatValid:     boolPtr(true),
				IncorrectFields: []string{"date"},
			},
		},
		{
			name: "absent accuracy key",
			res:  &ValidationResult{FormatValid: boolPtr(true)},
		},
		{
			name: "nil result",
			res:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Accepted())
		})
	}
}

func TestParseValidationResult(t *testing.T) {
	t.Run("string payload with surrounding whitespace", func(t *testing.T) {
		res, err := ParseValidationResult("  \n{\"is_complete\": true, \"is_accurate\": true, \"format_valid\": true, \"missing_fields\": [], \"incorrect_fields\": []}\n ")
		require.NoError(t, err)
		assert.True(t, res.Accepted())
		require.NotNil(t, res.IsComplete)
		assert.True(t, *res.IsComplete)
	})

	t.Run("decoded object payload", func(t *testing.T) {
		raw := map[string]any{
			"is_accurate":      true,
			"format_valid":     true,
			"missing_fields":   []any{"amount"},
			"incorrect_fields": []any{},
		}
		res, err := ParseValidationResult(raw)
		require.NoError(t, err)
		assert.Equal(t, []string{"amount"}, res.MissingFields)
		assert.False(t, res.Accepted())
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseValidationResult("{is_accurate: yes")
		require.ErrorIs(t, err, ErrInvalidValidationResult)
	})

	t.Run("string booleans are rejected", func(t *testing.T) {
		_, err := ParseValidationResult(`{"is_accurate": "true"}`)
		require.ErrorIs(t, err, ErrInvalidValidationResult)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := ParseValidationResult(42.0)
		require.ErrorIs(t, err, ErrInvalidValidationResult)
	})
}

func TestValidationResult_RoundTrip(t *testing.T) {
	orig := &ValidationResult{
		IsComplete:      boolPtr(false),
		IsAccurate:      boolPtr(true),
		FormatValid:     boolPtr(true),
		MissingFields:   []string{"due_date"},
		IncorrectFields: []string{"vendor", "total"},
	}

	row := Validation{
		Subject:          "Invoices",
		Description:      "Extract totals",
		Context:          "...",
		ExtractedInfo:    "{}",
		ValidationResult: orig.String(),
	}
	line, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))

	got, err := ParseValidationResult(decoded["validation_result"])
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}
