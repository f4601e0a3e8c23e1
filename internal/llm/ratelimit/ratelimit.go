// Package ratelimit throttles model calls with one token bucket per provider
// and model, so a large batch cannot flood a provider.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

var (
	errInvalidRate  = errors.New("tokens_per_second must be positive")
	errInvalidBurst = errors.New("burst_size must be positive")
)

// minRetryAfter keeps fail-fast callers from spinning.
const minRetryAfter = 100 * time.Millisecond

// Limiter owns the per-key token buckets.
type Limiter struct {
	config configuration.RateLimitConfig

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter

	allowed atomic.Int64
	limited atomic.Int64
	waited  atomic.Int64

	logger *slog.Logger
}

// New validates cfg and creates a Limiter.
func New(cfg configuration.RateLimitConfig) (*Limiter, error) {
	if cfg.TokensPerSecond <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInvalidRate, cfg.TokensPerSecond)
	}
	if cfg.BurstSize <= 0 {
		return nil, fmt.Errorf("%w, got %d", errInvalidBurst, cfg.BurstSize)
	}
	return &Limiter{
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
		logger:   slog.Default().With("component", "ratelimit"),
	}, nil
}

// Middleware returns the rate limiting middleware. In wait mode a request
// blocks until a token is available or ctx ends; otherwise it fails with a
// RateLimitError that the retry middleware backs off on.
func (l *Limiter) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := l.acquire(ctx, Key(req)); err != nil {
				return nil, err
			}
			return next.Handle(ctx, req)
		})
	}
}

// Key identifies the bucket a request draws from.
func Key(req *transport.Request) string {
	return req.Provider + ":" + req.Model
}

func (l *Limiter) acquire(ctx context.Context, key string) error {
	lim := l.limiterFor(key)

	if l.config.Wait {
		if lim.Allow() {
			l.allowed.Add(1)
			return nil
		}
		l.waited.Add(1)
		start := time.Now()
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait for %s: %w", key, err)
		}
		l.logger.Debug("waited for rate limit token", "key", key, "waited", time.Since(start))
		l.allowed.Add(1)
		return nil
	}

	if lim.Allow() {
		l.allowed.Add(1)
		return nil
	}
	l.limited.Add(1)

	// Compute the delay without consuming a token.
	reservation := lim.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	if delay < minRetryAfter {
		delay = minRetryAfter
	}

	return &llmerrors.RateLimitError{
		Provider:   "local",
		Limit:      int(l.config.TokensPerSecond),
		RetryAfter: delay,
		LocalLimit: true,
	}
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.config.TokensPerSecond), l.config.BurstSize)
	l.limiters[key] = lim
	return lim
}

// Stats is a snapshot of limiter activity.
type Stats struct {
	Allowed int64 `json:"allowed"`
	Limited int64 `json:"limited"`
	Waited  int64 `json:"waited"`
	Keys    int   `json:"keys"`
}

// Stats returns a snapshot of the counters.
func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	keys := len(l.limiters)
	l.mu.RUnlock()
	return Stats{
		Allowed: l.allowed.Load(),
		Limited: l.limited.Load(),
		Waited:  l.waited.Load(),
		Keys:    keys,
	}
}
