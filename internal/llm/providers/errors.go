package providers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
)

// ErrUnsupportedOperation is returned by Build for an unknown operation.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// ServerErrorStatusThreshold defines the HTTP status code threshold for server errors.
const ServerErrorStatusThreshold = 500

// classifyErrorType maps a provider error code, then the HTTP status, to an
// ErrorType.
func classifyErrorType(statusCode int, errorCode string) llmerrors.ErrorType {
	lowerCode := strings.ToLower(errorCode)
	switch {
	case strings.Contains(lowerCode, "rate") || strings.Contains(lowerCode, "limit"):
		return llmerrors.ErrorTypeRateLimit
	case strings.Contains(lowerCode, "timeout"):
		return llmerrors.ErrorTypeTimeout
	case strings.Contains(lowerCode, "auth") || strings.Contains(lowerCode, "unauthorized"):
		return llmerrors.ErrorTypeAuth
	case strings.Contains(lowerCode, "permission") || strings.Contains(lowerCode, "forbidden"):
		return llmerrors.ErrorTypePermission
	case strings.Contains(lowerCode, "quota") || strings.Contains(lowerCode, "insufficient"):
		return llmerrors.ErrorTypeQuota
	case strings.Contains(lowerCode, "overloaded"):
		return llmerrors.ErrorTypeProvider
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return llmerrors.ErrorTypeRateLimit
	case http.StatusUnauthorized:
		return llmerrors.ErrorTypeAuth
	case http.StatusForbidden:
		return llmerrors.ErrorTypePermission
	case http.StatusPaymentRequired:
		return llmerrors.ErrorTypeQuota
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return llmerrors.ErrorTypeTimeout
	case http.StatusBadRequest:
		return llmerrors.ErrorTypeValidation
	default:
		if statusCode >= ServerErrorStatusThreshold {
			return llmerrors.ErrorTypeProvider
		}
		return llmerrors.ErrorTypeUnknown
	}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date, returning whole seconds.
func parseRetryAfter(h http.Header) int {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return secs
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return int(d.Round(time.Second) / time.Second)
		}
	}
	return 0
}

// newProviderError builds a ProviderError from a decoded error body. An empty
// message falls back to the raw body.
func newProviderError(provider string, resp *http.Response, body []byte, message, code string) *llmerrors.ProviderError {
	if message == "" {
		message = string(body)
	}
	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Type:       classifyErrorType(resp.StatusCode, code),
		RetryAfter: parseRetryAfter(resp.Header),
	}
}
