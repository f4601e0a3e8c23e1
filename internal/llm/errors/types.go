// Package errors defines the typed failures produced by the model-calling
// stack and the classification used to decide whether a call is retried.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType categorizes model call failures for retry classification.
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates a local or remote rate limit (retryable).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates the provider service is unavailable (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeValidation indicates the request failed local validation.
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeContent indicates content blocked by provider safety filters.
	ErrorTypeContent ErrorType = "content_filtered"

	// ErrorTypeMalformedOutput indicates the model answered with text that
	// could not be turned into the requested record.
	ErrorTypeMalformedOutput ErrorType = "malformed_output"

	// ErrorTypeCircuitBreaker indicates the call was refused because the
	// model's circuit is open (non-retryable; try another model).
	ErrorTypeCircuitBreaker ErrorType = "circuit_breaker"

	// ErrorTypeAuth indicates authentication failed (non-retryable).
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypePermission indicates insufficient permissions (non-retryable).
	ErrorTypePermission ErrorType = "permission_denied"

	// ErrorTypeQuota indicates account quota exceeded (non-retryable).
	ErrorTypeQuota ErrorType = "quota_exceeded"

	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = "unknown"
)

var (
	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("provider service unavailable")

	// ErrRateLimitExceeded indicates a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCacheMiss indicates the requested response was not cached.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownProvider indicates a provider prefix with no registered adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidResponse indicates the provider returned an unreadable body.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrMalformedOutput indicates model text that is not the requested JSON.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrMaxRetriesExceeded indicates maximum retry attempts exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// ErrNoCandidates indicates a call was attempted with no candidate models.
	ErrNoCandidates = errors.New("no candidate models")
)

// ProviderError captures a structured error response from a model provider.
type ProviderError struct {
	Provider   string    `json:"provider"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	Code       string    `json:"code"`        // Provider error code
	Type       ErrorType `json:"type"`        // Classified error type
	RetryAfter int       `json:"retry_after"` // Retry-After header value in seconds
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// GetRetryAfter implements the retry middleware's RetryAfterProvider.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// RateLimitError reports an exhausted rate limit and how long to back off.
// LocalLimit distinguishes the process-local limiter from a provider 429.
type RateLimitError struct {
	Provider   string        `json:"provider"`
	RetryAfter time.Duration `json:"retry_after"`
	Limit      int           `json:"limit"`
	LocalLimit bool          `json:"local_limit"`
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Provider)
}

// GetRetryAfter implements the retry middleware's RetryAfterProvider.
func (e *RateLimitError) GetRetryAfter() time.Duration { return e.RetryAfter }

// ValidationError captures a rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// OutputError reports model output that could not be decoded into the
// requested shape. Raw is truncated to keep logs bounded.
type OutputError struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
	Raw    string `json:"raw"`
}

const maxRawOutput = 512

// NewOutputError builds an OutputError, truncating raw.
func NewOutputError(model, reason, raw string) *OutputError {
	if len(raw) > maxRawOutput {
		raw = raw[:maxRawOutput] + "..."
	}
	return &OutputError{Model: model, Reason: reason, Raw: raw}
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("malformed output from %s: %s", e.Model, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedOutput.
func (e *OutputError) Unwrap() error { return ErrMalformedOutput }

// IsRetryableError determines if an error warrants another attempt.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.ShouldRetry()
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return true
	}

	if errors.Is(err, ErrRateLimitExceeded) || errors.Is(err, ErrProviderUnavailable) {
		return true
	}

	type statusCoder interface {
		StatusCode() int
	}
	if sc, ok := err.(statusCoder); ok {
		code := sc.StatusCode()
		return code == http.StatusTooManyRequests ||
			code == http.StatusRequestTimeout ||
			code == http.StatusGatewayTimeout ||
			code >= 500
	}

	// Unknown errors are not retried.
	return false
}

// IsRateLimitError identifies rate limiting errors for backoff handling.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Type == ErrorTypeRateLimit
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Type == ErrorTypeRateLimit
	}

	return errors.Is(err, ErrRateLimitExceeded)
}

// GetRetryAfter extracts the server- or limiter-suggested wait, or 0.
func GetRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.GetRetryAfter()
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.GetRetryAfter()
	}

	return 0
}
