package errors

import (
	"context"
	"errors"
	"strings"
)

// ClassifyLLMError turns any model call failure into a WorkflowError with a
// retry recommendation. Typed errors are examined first, then sentinels, then
// the message text.
func ClassifyLLMError(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}

	if workflowErr := classifyTypedErrors(err); workflowErr != nil {
		return workflowErr
	}

	if workflowErr := classifySentinelErrors(err); workflowErr != nil {
		return workflowErr
	}

	return classifyStringPatternErrors(err)
}

func classifyTypedErrors(err error) *WorkflowError {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return &WorkflowError{
			Type:      providerErr.Type,
			Message:   providerErr.Message,
			Code:      providerErr.Code,
			Retryable: providerErr.IsRetryable(),
			Details: map[string]any{
				"provider":    providerErr.Provider,
				"status_code": providerErr.StatusCode,
			},
			Cause: err,
		}
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   rateLimitErr.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details: map[string]any{
				"provider":    rateLimitErr.Provider,
				"retry_after": rateLimitErr.RetryAfter.String(),
				"local":       rateLimitErr.LocalLimit,
			},
			Cause: err,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Details: map[string]any{
				"field": valErr.Field,
				"value": valErr.Value,
			},
			Cause: err,
		}
	}

	var outErr *OutputError
	if errors.As(err, &outErr) {
		return &WorkflowError{
			Type:      ErrorTypeMalformedOutput,
			Message:   outErr.Error(),
			Code:      "MALFORMED_OUTPUT",
			Retryable: false,
			Details: map[string]any{
				"model":  outErr.Model,
				"reason": outErr.Reason,
			},
			Cause: err,
		}
	}

	return nil
}

func classifySentinelErrors(err error) *WorkflowError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &WorkflowError{
			Type:      ErrorTypeTimeout,
			Message:   err.Error(),
			Code:      "TIMEOUT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, context.Canceled):
		return &WorkflowError{
			Type:      ErrorTypeUnknown,
			Message:   err.Error(),
			Code:      "CANCELED",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrRateLimitExceeded):
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   err.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrProviderUnavailable):
		return &WorkflowError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "PROVIDER_UNAVAILABLE",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrNoCandidates):
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   err.Error(),
			Code:      "UNKNOWN_PROVIDER",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrMaxRetriesExceeded):
		return &WorkflowError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "MAX_RETRIES",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	}

	return nil
}

func classifyStringPatternErrors(err error) *WorkflowError {
	errMsg := strings.ToLower(err.Error())

	var (
		typ       ErrorType
		message   string
		code      string
		retryable bool
	)
	switch {
	case strings.Contains(errMsg, "rate limit"):
		typ, message, code, retryable = ErrorTypeRateLimit, "Rate limit exceeded", "RATE_LIMIT", true
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		typ, message, code, retryable = ErrorTypeTimeout, "Request timeout", "TIMEOUT", true
	case strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "authentication"):
		typ, message, code = ErrorTypeAuth, "Authentication failed", "AUTH_FAILED"
	case strings.Contains(errMsg, "forbidden") || strings.Contains(errMsg, "permission"):
		typ, message, code = ErrorTypePermission, "Permission denied", "PERMISSION_DENIED"
	case strings.Contains(errMsg, "quota"):
		typ, message, code = ErrorTypeQuota, "Quota exceeded", "QUOTA_EXCEEDED"
	case strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection"):
		typ, message, code, retryable = ErrorTypeNetwork, "Network error", "NETWORK_ERROR", true
	default:
		typ, message, code = ErrorTypeUnknown, "Unknown error", "UNKNOWN"
	}

	return &WorkflowError{
		Type:      typ,
		Message:   message,
		Code:      code,
		Retryable: retryable,
		Details:   map[string]any{"original_error": err.Error()},
		Cause:     err,
	}
}
