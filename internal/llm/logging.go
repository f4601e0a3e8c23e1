package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

const previewLimit = 200

type loggingMiddleware struct {
	logger *slog.Logger
	redact bool
}

// NewLoggingMiddleware logs the start and outcome of every logical call.
// With RedactPrompts only prompt and response lengths are logged.
func NewLoggingMiddleware(cfg configuration.ObservabilityConfig, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &loggingMiddleware{logger: logger.With("component", "llm"), redact: cfg.RedactPrompts}
	return m.wrap
}

func (m *loggingMiddleware) wrap(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if req.TraceID == "" {
			req.TraceID = uuid.NewString()
		}
		m.logRequest(ctx, req)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		if err != nil {
			m.logError(ctx, req, err, duration)
		} else if resp != nil {
			m.logSuccess(ctx, req, resp, duration)
		}
		return resp, err
	})
}

func (m *loggingMiddleware) logRequest(ctx context.Context, req *transport.Request) {
	fields := []any{
		"request_id", req.TraceID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	}
	if m.redact {
		fields = append(fields, "prompt_length", len(req.Prompt))
	} else {
		fields = append(fields, "prompt", preview(req.Prompt))
	}
	if req.SystemPrompt != "" {
		if m.redact {
			fields = append(fields, "system_prompt_length", len(req.SystemPrompt))
		} else {
			fields = append(fields, "system_prompt", req.SystemPrompt)
		}
	}
	m.logger.DebugContext(ctx, "LLM request started", fields...)
}

func (m *loggingMiddleware) logError(ctx context.Context, req *transport.Request, err error, d time.Duration) {
	errorType := llmerrors.ErrorTypeUnknown
	if wfErr := llmerrors.ClassifyLLMError(err); wfErr != nil {
		errorType = wfErr.Type
	}
	m.logger.WarnContext(ctx, "LLM request failed",
		"request_id", req.TraceID,
		"provider", req.Provider,
		"model", req.Model,
		"duration_ms", d.Milliseconds(),
		"error_type", errorType,
		"error", err.Error(),
	)
}

func (m *loggingMiddleware) logSuccess(ctx context.Context, req *transport.Request, resp *transport.Response, d time.Duration) {
	fields := []any{
		"request_id", req.TraceID,
		"provider", req.Provider,
		"model", req.Model,
		"duration_ms", d.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"cache_hit", resp.CacheHit,
		"provider_request_ids", strings.Join(resp.ProviderRequestIDs, ","),
	}
	if m.redact {
		fields = append(fields, "response_length", len(resp.Content))
	} else {
		fields = append(fields, "response_preview", preview(resp.Content))
	}
	m.logger.InfoContext(ctx, "LLM request completed", fields...)
}

func preview(s string) string {
	if len(s) > previewLimit {
		return s[:previewLimit] + "..."
	}
	return s
}
