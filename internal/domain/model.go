package domain

import (
	"fmt"
	"strings"
	"time"
)

// ModelID names a model as "provider:model", for example
// "openai:gpt-4o-mini" or "openrouter:anthropic/claude-3.5-sonnet".
// The model part may itself contain slashes.
type ModelID string

// Default candidate models.
const (
	ModelGPT4oMini      ModelID = "openai:gpt-4o-mini"
	ModelGPT4o          ModelID = "openai:gpt-4o"
	ModelSonnet35Router ModelID = "openrouter:anthropic/claude-3.5-sonnet"
)

// ParseModelID splits a model identifier into provider and model.
func ParseModelID(s string) (ModelID, error) {
	id := ModelID(strings.TrimSpace(s))
	if _, _, err := id.Split(); err != nil {
		return "", err
	}
	return id, nil
}

// Split returns the provider and model parts.
func (m ModelID) Split() (provider, model string, err error) {
	provider, model, ok := strings.Cut(string(m), ":")
	if !ok || strings.TrimSpace(provider) == "" || strings.TrimSpace(model) == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidModelID, string(m))
	}
	return strings.ToLower(provider), model, nil
}

// Provider returns the provider part, or "" for a malformed identifier.
func (m ModelID) Provider() string {
	p, _, err := m.Split()
	if err != nil {
		return ""
	}
	return p
}

// Model returns the model part, or "" for a malformed identifier.
func (m ModelID) Model() string {
	_, model, err := m.Split()
	if err != nil {
		return ""
	}
	return model
}

func (m ModelID) String() string { return string(m) }

// FinishReason indicates why the model stopped producing tokens.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolUse       FinishReason = "tool_use"
)

// CompletionInput is a single prompt sent to one model.
type CompletionInput struct {
	Model        ModelID       `json:"model" validate:"required"`
	Prompt       string        `json:"prompt" validate:"required"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	MaxTokens    int64         `json:"max_tokens" validate:"gte=0"`
	Temperature  float64       `json:"temperature" validate:"gte=0,lte=2"`
	Timeout      time.Duration `json:"timeout"`

	// Structured asks the provider for a JSON object response.
	Structured bool `json:"structured"`
}

// Validate checks the completion input.
func (c *CompletionInput) Validate() error { return validate.Struct(c) }

// Usage reports token consumption and latency for one completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// CompletionOutput is the normalized model response.
type CompletionOutput struct {
	Model              ModelID      `json:"model"`
	Content            string       `json:"content"`
	FinishReason       FinishReason `json:"finish_reason"`
	Usage              Usage        `json:"usage"`
	ProviderRequestIDs []string     `json:"provider_request_ids,omitempty"`
	CacheHit           bool         `json:"cache_hit"`
}
