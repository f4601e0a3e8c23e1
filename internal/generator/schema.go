package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahrav/go-synth/internal/dataset"
)

// FieldType is the JSON type of an output field.
type FieldType string

const (
	String FieldType = "string"
	Number FieldType = "number"
)

// Schema errors.
var (
	ErrEmptySchema     = errors.New("schema has no fields")
	ErrDuplicateField  = errors.New("duplicate schema field")
	ErrMissingField    = errors.New("output is missing a schema field")
	ErrFieldType       = errors.New("output field has the wrong type")
	ErrFieldOutOfRange = errors.New("output field is out of range")
)

// Field describes one key of the output object.
type Field struct {
	Name        string
	Type        FieldType
	Description string

	// Bounded restricts a Number field to [Min, Max].
	Bounded  bool
	Min, Max float64
}

// Schema is the ordered set of fields every generated record carries.
type Schema []Field

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Validate rejects empty schemas and duplicate field names.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Instructions renders the output contract appended to every prompt.
func (s Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. The object must have exactly these keys:\n")
	for _, f := range s {
		fmt.Fprintf(&b, "- %q (%s)", f.Name, f.Type)
		if f.Bounded {
			fmt.Fprintf(&b, " between %g and %g", f.Min, f.Max)
		}
		if f.Description != "" {
			b.WriteString(": ")
			b.WriteString(f.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Conform shapes a decoded model object into a record. Keys the model left
// out are echoed from the instruction parameters; non-string values in
// string fields are re-encoded as JSON text; numeric strings are accepted
// for number fields. Keys outside the schema are dropped.
func (s Schema) Conform(obj map[string]any, params map[string]string) (dataset.Row, error) {
	out := make(dataset.Row, len(s))
	for _, f := range s {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			p, found := params[f.Name]
			if !found {
				return nil, fmt.Errorf("%w: %s", ErrMissingField, f.Name)
			}
			v = p
		}

		switch f.Type {
		case Number:
			n, err := toNumber(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrFieldType, f.Name, err)
			}
			if f.Bounded {
				if n, err = clamp(n, f); err != nil {
					return nil, err
				}
			}
			out[f.Name] = n
		default:
			out[f.Name] = dataset.Stringify(v)
		}
	}
	return out, nil
}

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

// clamp accepts percentages for a [0,1] field (85 becomes 0.85) and rejects
// anything else outside the bounds.
func clamp(n float64, f Field) (float64, error) {
	if n >= f.Min && n <= f.Max {
		return n, nil
	}
	if f.Min == 0 && f.Max == 1 && n > 1 && n <= 100 {
		return n / 100, nil
	}
	return 0, fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrFieldOutOfRange, f.Name, n, f.Min, f.Max)
}
