package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
)

// placeholderPattern matches {{name}} placeholders, allowing inner spaces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// PromptSpec captures a rendered prompt together with the template and
// variables that produced it, so a generated record can be traced back to its
// exact input.
type PromptSpec struct {
	// Template is the prompt text with {{name}} placeholders.
	Template string `json:"template" validate:"required"`

	// Variables holds the values substituted for each placeholder.
	Variables map[string]string `json:"variables"`

	// Rendered is the final prompt text sent to the model.
	Rendered string `json:"rendered" validate:"required"`

	// Hash is the SHA-256 hex digest of Rendered.
	Hash string `json:"hash" validate:"required,len=64"`
}

// Validate checks if the rendered prompt record is complete.
func (p *PromptSpec) Validate() error { return validate.Struct(p) }

// NewPromptSpec renders template with variables and returns the resulting spec.
// Every placeholder must have a value; extra variables are ignored.
func NewPromptSpec(template string, variables map[string]string) (PromptSpec, error) {
	rendered, err := RenderTemplate(template, variables)
	if err != nil {
		return PromptSpec{}, err
	}

	sum := sha256.Sum256([]byte(rendered))
	spec := PromptSpec{
		Template:  template,
		Variables: cloneStringMap(variables),
		Rendered:  rendered,
		Hash:      hex.EncodeToString(sum[:]),
	}

	if err := spec.Validate(); err != nil {
		return PromptSpec{}, fmt.Errorf("%w: %w", ErrInvalidPromptSpec, err)
	}
	return spec, nil
}

// RenderTemplate substitutes {{name}} placeholders. It fails with
// ErrMissingVariable naming the first placeholder without a value.
func RenderTemplate(template string, variables map[string]string) (string, error) {
	var missing string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		val, ok := variables[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, missing)
	}
	return rendered, nil
}

// Placeholders lists the distinct placeholder names in template, sorted.
func Placeholders(template string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		seen[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
