package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// CurrentCanonicalVersion is mixed into every key. Bump it when
// canonicalization changes so stale cache entries stop matching.
const CurrentCanonicalVersion = "v1"

// CanonicalPayload is the normalized form of a request. Equivalent requests
// produce identical payloads and therefore identical keys.
type CanonicalPayload struct {
	Operation OperationType  `json:"operation"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	System    string         `json:"system,omitempty"`
	Prompt    string         `json:"prompt"`
	Params    map[string]any `json:"params,omitempty"`
	Version   string         `json:"version"`
}

// IdemKey is the hex SHA-256 of a canonical payload.
type IdemKey string

// String returns the key as a string.
func (k IdemKey) String() string { return string(k) }

// BuildCanonicalPayload normalizes req.
func BuildCanonicalPayload(req *Request) *CanonicalPayload {
	payload := &CanonicalPayload{
		Operation: req.Operation,
		Provider:  strings.ToLower(strings.TrimSpace(req.Provider)),
		Model:     strings.TrimSpace(req.Model),
		System:    normalizeText(req.SystemPrompt),
		Prompt:    normalizeText(req.Prompt),
		Version:   CurrentCanonicalVersion,
	}

	// Only non-default parameters take part in the key.
	params := make(map[string]any)
	if req.MaxTokens > 0 {
		params["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != 0 {
		params["temperature"] = req.Temperature
	}
	if len(params) > 0 {
		payload.Params = params
	}
	return payload
}

// GenerateIdemKey returns the idempotency key for req. encoding/json sorts
// map keys, so the encoding is stable.
func GenerateIdemKey(req *Request) (IdemKey, error) {
	b, err := json.Marshal(BuildCanonicalPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return IdemKey(hex.EncodeToString(sum[:])), nil
}

// CacheKey builds the Redis key {prefix}{operation}:{idemkey}.
func CacheKey(prefix string, operation OperationType, key IdemKey) string {
	return fmt.Sprintf("%s%s:%s", prefix, operation, key)
}

// normalizeText trims, converts CRLF to LF and collapses runs of spaces and
// tabs within each line. Line breaks are kept since they change prompts.
func normalizeText(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}
