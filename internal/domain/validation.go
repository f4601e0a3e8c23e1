package domain

import (
	"fmt"
	"maps"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
// It carries a "notblank" rule so records reject whitespace-only strings the
// same way the stage input filters do.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

// notBlank reports whether a string field contains at least one non-space rune.
// Non-string fields pass.
func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// ValidateRecord runs struct-tag validation on any record type and wraps
// failures with ErrInvalidRecord.
func ValidateRecord(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

// cloneStringMap creates a copy of a string map to prevent aliasing.
// Returns nil for nil input to maintain consistency.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	result := make(map[string]string, len(m))
	maps.Copy(result, m)
	return result
}
