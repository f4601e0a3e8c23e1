package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm/configuration"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

// GoogleAdapter implements ProviderAdapter for the Gemini generateContent API.
type GoogleAdapter struct {
	config configuration.ProviderConfig
}

// NewGoogleAdapter creates a Gemini adapter.
func NewGoogleAdapter(cfg configuration.ProviderConfig) *GoogleAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.GoogleEndpoint
	}
	return &GoogleAdapter{config: cfg}
}

// Name returns the provider name.
func (a *GoogleAdapter) Name() string { return ProviderGoogle }

// Build constructs a generateContent request. Structured requests ask for an
// application/json response.
func (a *GoogleAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	switch req.Operation {
	case transport.OpText, transport.OpStructured:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, req.Operation)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.config.Endpoint, url.PathEscape(req.Model))

	genConfig := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Operation == transport.OpStructured {
		genConfig["responseMimeType"] = "application/json"
	}

	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": req.Prompt}}},
		},
		"generationConfig": genConfig,
	}
	if req.SystemPrompt != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.SystemPrompt}},
		}
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
	httpReq.Header.Set("x-goog-api-key", a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse joins the parts of the first candidate.
func (a *GoogleAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		return nil, newProviderError(ProviderGoogle, httpResp, body, errResp.Error.Message, errResp.Error.Status)
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
		ResponseID string `json:"responseId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var (
		sb           strings.Builder
		finishReason = domain.FinishStop
	)
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		finishReason = mapGoogleFinishReason(resp.Candidates[0].FinishReason)
	}

	requestIDs := []string{}
	if resp.ResponseID != "" {
		requestIDs = append(requestIDs, resp.ResponseID)
	}

	return &transport.Response{
		Content:            sb.String(),
		FinishReason:       finishReason,
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
		},
		Headers: httpResp.Header,
		RawBody: body,
	}, nil
}

func mapGoogleFinishReason(reason string) domain.FinishReason {
	switch strings.ToUpper(reason) {
	case "MAX_TOKENS":
		return domain.FinishLength
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "RECITATION":
		return domain.FinishContentFilter
	default:
		return domain.FinishStop
	}
}
