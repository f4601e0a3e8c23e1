package errors

import (
	"fmt"
)

// WorkflowError is the classified form of a model call failure. Activities
// convert it into a Temporal application error; the CLI logs it.
type WorkflowError struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Code      string         `json:"code"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details"`
	Cause     error          `json:"-"`
}

func (e *WorkflowError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *WorkflowError) Unwrap() error { return e.Cause }

// ShouldRetry returns the explicit retry recommendation.
func (e *WorkflowError) ShouldRetry() bool { return e.Retryable }

// IsRetryable reports the default retry decision for the error type,
// ignoring any override carried in Retryable.
func (e *WorkflowError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}
