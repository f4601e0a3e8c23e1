package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm/configuration"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

const (
	anthropicVersion = "2023-06-01"
	// anthropicDefaultMaxTokens is sent when the request leaves MaxTokens
	// unset; the messages API rejects requests without it.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicAdapter implements ProviderAdapter for the Anthropic messages API.
type AnthropicAdapter struct {
	config configuration.ProviderConfig
}

// NewAnthropicAdapter creates an Anthropic adapter.
func NewAnthropicAdapter(cfg configuration.ProviderConfig) *AnthropicAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.AnthropicEndpoint
	}
	return &AnthropicAdapter{config: cfg}
}

// Name returns the provider name.
func (a *AnthropicAdapter) Name() string { return ProviderAnthropic }

// Build constructs a messages request. The system prompt travels in its own
// field.
func (a *AnthropicAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	switch req.Operation {
	case transport.OpText, transport.OpStructured:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, req.Operation)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	body := map[string]any{
		"model":       req.Model,
		"messages":    []map[string]any{{"role": "user", "content": req.Prompt}},
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse joins the text blocks of a messages response.
func (a *AnthropicAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		return nil, newProviderError(ProviderAnthropic, httpResp, body, errResp.Error.Message, errResp.Error.Type)
	}

	var resp struct {
		ID      string `json:"id"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}

	requestIDs := []string{}
	if reqID := httpResp.Header.Get("request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	} else if resp.ID != "" {
		requestIDs = append(requestIDs, resp.ID)
	}

	return &transport.Response{
		Content:            sb.String(),
		FinishReason:       mapAnthropicStopReason(resp.StopReason),
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.InputTokens),
			CompletionTokens: int64(resp.Usage.OutputTokens),
			TotalTokens:      int64(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Headers: httpResp.Header,
		RawBody: body,
	}, nil
}

func mapAnthropicStopReason(reason string) domain.FinishReason {
	switch reason {
	case "max_tokens":
		return domain.FinishLength
	case "refusal":
		return domain.FinishContentFilter
	case "tool_use":
		return domain.FinishToolUse
	default:
		return domain.FinishStop
	}
}
