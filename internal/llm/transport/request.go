// Package transport defines the normalized request and response that flow
// through the model client's middleware chain, and the core handler that
// turns them into provider HTTP calls.
package transport

import (
	"net/http"
	"time"

	"github.com/ahrav/go-synth/internal/domain"
)

// OperationType differentiates free-text from structured (JSON object)
// completions. Adapters use it to request JSON mode where supported.
type OperationType string

const (
	// OpText asks for plain text.
	OpText OperationType = "text"

	// OpStructured asks for a single JSON object.
	OpStructured OperationType = "structured"
)

// Request is a normalized completion request across providers.
type Request struct {
	Operation OperationType `json:"operation"`

	// Provider is the model id prefix that selects the adapter.
	Provider string `json:"provider"`

	// Model is the provider-local model name.
	Model string `json:"model"`

	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`

	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	Timeout        time.Duration `json:"timeout"`
	IdempotencyKey string        `json:"idempotency_key"`
	TraceID        string        `json:"trace_id"`
}

// Response is normalized provider output.
type Response struct {
	Content            string              `json:"content"`
	FinishReason       domain.FinishReason `json:"finish_reason"`
	ProviderRequestIDs []string            `json:"provider_request_ids"`
	Usage              NormalizedUsage     `json:"usage"`

	// CacheHit is set by the cache middleware when the response was served
	// from Redis.
	CacheHit bool `json:"cache_hit"`

	Headers http.Header `json:"-"`
	RawBody []byte      `json:"-"`
}

// NormalizedUsage provides token and timing metrics in one shape for every
// provider.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}
