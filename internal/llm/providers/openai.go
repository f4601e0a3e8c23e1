package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm/configuration"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

// OpenAIAdapter speaks the chat/completions API. OpenRouter serves the same
// API, so one adapter type covers both; they differ in name, endpoint and
// whether JSON mode is requested.
type OpenAIAdapter struct {
	name     string
	config   configuration.ProviderConfig
	jsonMode bool
}

// NewOpenAIAdapter creates an adapter for api.openai.com.
func NewOpenAIAdapter(cfg configuration.ProviderConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.OpenAIEndpoint
	}
	return &OpenAIAdapter{name: ProviderOpenAI, config: cfg, jsonMode: true}
}

// NewOpenRouterAdapter creates an adapter for openrouter.ai. JSON mode is
// not requested because not every routed model accepts response_format;
// structured prompts ask for JSON in their text instead.
func NewOpenRouterAdapter(cfg configuration.ProviderConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.OpenRouterEndpoint
	}
	return &OpenAIAdapter{name: ProviderOpenRouter, config: cfg}
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string { return a.name }

// Build constructs a chat/completions request.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	switch req.Operation {
	case transport.OpText, transport.OpStructured:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, req.Operation)
	}
	endpoint := a.config.Endpoint + "/chat/completions"

	messages := make([]map[string]any, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Operation == transport.OpStructured && a.jsonMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse extracts the first choice, usage and request id.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.parseError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		// OpenRouter reports upstream failures in a 200 body.
		Error *struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil && len(resp.Choices) == 0 {
		return nil, newProviderError(a.name, &http.Response{StatusCode: http.StatusBadGateway, Header: httpResp.Header},
			body, resp.Error.Message, fmt.Sprint(resp.Error.Code))
	}

	var content string
	var finishReason domain.FinishReason
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = mapOpenAIFinishReason(resp.Choices[0].FinishReason)
	}

	requestIDs := []string{}
	if reqID := httpResp.Header.Get("x-request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	} else if resp.ID != "" {
		requestIDs = append(requestIDs, resp.ID)
	}

	return &transport.Response{
		Content:            content,
		FinishReason:       finishReason,
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
		Headers: httpResp.Header,
		RawBody: body,
	}, nil
}

func mapOpenAIFinishReason(reason string) domain.FinishReason {
	switch reason {
	case "length":
		return domain.FinishLength
	case "content_filter":
		return domain.FinishContentFilter
	case "tool_calls", "function_call":
		return domain.FinishToolUse
	default:
		return domain.FinishStop
	}
}

func (a *OpenAIAdapter) parseError(resp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return newProviderError(a.name, resp, body, "", "")
	}
	code := errResp.Error.Type
	if s, ok := errResp.Error.Code.(string); ok && s != "" {
		code = s
	}
	return newProviderError(a.name, resp, body, errResp.Error.Message, code)
}
