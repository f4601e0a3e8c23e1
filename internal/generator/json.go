package generator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when a response holds no parsable JSON object.
var ErrNoJSONObject = errors.New("response contains no JSON object")

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n(.*?)\\n?```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// ParseObject extracts the JSON object a model returned. It tries the raw
// text, then the body of a markdown fence, then the span from the first '{'
// to the last '}', and finally a syntax repair of each candidate.
func ParseObject(content string) (map[string]any, error) {
	candidates := jsonCandidates(content)
	for _, c := range candidates {
		if obj, ok := decodeObject(c); ok {
			return obj, nil
		}
	}
	for _, c := range candidates {
		if obj, ok := decodeObject(repairJSON(c)); ok {
			return obj, nil
		}
	}
	return nil, ErrNoJSONObject
}

func jsonCandidates(content string) []string {
	content = strings.TrimSpace(strings.TrimPrefix(content, "\ufeff"))
	out := []string{content}
	if m := fencePattern.FindStringSubmatch(content); len(m) > 1 {
		out = append(out, strings.TrimSpace(m[1]))
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		out = append(out, content[start:end+1])
	} else if start != -1 {
		// Truncated output; repair closes the braces.
		out = append(out, content[start:])
	}
	return out
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// repairJSON fixes the syntax errors models commonly make: trailing commas,
// unclosed braces and unquoted keys.
func repairJSON(s string) string {
	repaired := trailingCommaPattern.ReplaceAllString(s, "$1")

	if open := strings.Count(repaired, "[") - strings.Count(repaired, "]"); open > 0 {
		repaired += strings.Repeat("]", open)
	}
	if open := strings.Count(repaired, "{") - strings.Count(repaired, "}"); open > 0 {
		repaired += strings.Repeat("}", open)
	}

	repaired = unquotedKeyPattern.ReplaceAllString(repaired, `$1"$2":`)
	return strings.TrimSpace(repaired)
}
