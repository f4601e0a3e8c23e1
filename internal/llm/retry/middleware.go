// Package retry retries transient model call failures with exponential
// backoff and full jitter, honoring provider Retry-After guidance.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

var (
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
	errMaxElapsedTimeInvalid  = errors.New("maxElapsedTime must be >= 0")

	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// AfterProvider is implemented by errors that carry a server-suggested wait.
type AfterProvider interface {
	GetRetryAfter() time.Duration
}

// Retrier holds the retry policy and counters shared by every request that
// passes through its middleware.
type Retrier struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  retryStats
}

// New validates cfg and creates a Retrier.
func New(cfg configuration.RetryConfig) (*Retrier, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}
	if cfg.MaxElapsedTime < 0 {
		return nil, fmt.Errorf("%w, got %v", errMaxElapsedTimeInvalid, cfg.MaxElapsedTime)
	}

	return &Retrier{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
	}, nil
}

// NewRetryMiddleware is shorthand for New followed by Middleware.
func NewRetryMiddleware(cfg configuration.RetryConfig) (transport.Middleware, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return r.Middleware(), nil
}

// Middleware returns the retry middleware.
func (r *Retrier) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			return r.do(ctx, next, req)
		})
	}
}

func (r *Retrier) do(ctx context.Context, next transport.Handler, req *transport.Request) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, err)
	}

	var lastErr error
	start := time.Now()
	attempts := 0

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		resp, err := next.Handle(ctx, req)
		attempts = attempt
		r.stats.totalAttempts.Add(1)

		if err == nil {
			if attempt > 1 {
				r.stats.successfulRetries.Add(1)
				r.logger.Info("request succeeded after retry",
					"attempt", attempt,
					"provider", req.Provider,
					"model", req.Model)
			} else {
				r.stats.successfulFirstAttempts.Add(1)
			}
			return resp, nil
		}

		if !isRetryable(err) {
			r.logger.Debug("non-retryable error",
				"error", err,
				"attempt", attempt,
				"provider", req.Provider)
			return nil, err
		}
		lastErr = err

		if attempt == r.config.MaxAttempts {
			break
		}

		backoff := r.calculateBackoff(attempt, err)
		if r.config.MaxElapsedTime > 0 {
			elapsed := time.Since(start)
			if elapsed+backoff > r.config.MaxElapsedTime {
				// A Retry-After beyond the budget falls back to plain backoff.
				backoff = r.exponentialBackoff(attempt)
				if elapsed+backoff > r.config.MaxElapsedTime {
					r.logger.Warn("max elapsed time exceeded",
						"elapsed", elapsed,
						"attempts", attempt,
						"last_error", err)
					break
				}
			}
		}
		r.stats.recordBackoff(backoff)

		r.logger.Debug("retrying after backoff",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
			"provider", req.Provider,
			"model", req.Model)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, ctx.Err())
		}
	}

	r.stats.failedRetries.Add(1)
	return nil, fmt.Errorf("%w after %d attempts: %w", llmerrors.ErrMaxRetriesExceeded, attempts, lastErr)
}

// isRetryable classifies typed errors first, then transport failures.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var rateLimitErr *llmerrors.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var providerErr *llmerrors.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}

	var workflowErr *llmerrors.WorkflowError
	if errors.As(err, &workflowErr) {
		return workflowErr.Retryable
	}

	if errors.Is(err, transport.ErrEmptyContent) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if isNetworkError(err) {
		return true
	}

	var provider AfterProvider
	return errors.As(err, &provider)
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var netErr net.Error
		if errors.As(urlErr.Err, &netErr) && netErr.Timeout() {
			return true
		}
		return isNetworkErrorByString(urlErr.Err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return isNetworkErrorByString(err.Error())
}

var networkErrorIndicators = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"unexpected eof",
}

func isNetworkErrorByString(errStr string) bool {
	lowered := strings.ToLower(errStr)
	for _, indicator := range networkErrorIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}
