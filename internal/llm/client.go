// Package llm is the model-calling backend used by the batch generator and
// the RAG task executor. A Client turns a domain.CompletionInput into a
// provider HTTP call behind a middleware chain:
//
//	logging -> cache -> retry -> circuit breaker -> rate limit -> provider HTTP
//
// Logging and caching apply once per logical call; the circuit breaker and
// rate limiting apply to every retry attempt.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm/cache"
	"github.com/ahrav/go-synth/internal/llm/circuitbreaker"
	"github.com/ahrav/go-synth/internal/llm/configuration"
	"github.com/ahrav/go-synth/internal/llm/providers"
	"github.com/ahrav/go-synth/internal/llm/ratelimit"
	"github.com/ahrav/go-synth/internal/llm/retry"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

// ErrInvalidInput wraps a CompletionInput that failed validation.
var ErrInvalidInput = errors.New("invalid completion input")

// Completer performs a single completion against one model.
type Completer interface {
	Complete(ctx context.Context, in domain.CompletionInput) (*domain.CompletionOutput, error)
}

// Client is the production Completer.
type Client struct {
	config  *configuration.Config
	router  *providers.Router
	handler transport.Handler

	retrier  *retry.Retrier
	breakers *circuitbreaker.Breakers
	limiter  *ratelimit.Limiter
	cache    *cache.Cache

	logger *slog.Logger
}

// Option customizes NewClient.
type Option func(*options)

type options struct {
	redis  cache.RedisClient
	logger *slog.Logger
}

// WithRedisClient supplies the Redis client for the response cache instead
// of dialing one from the cache configuration.
func WithRedisClient(c cache.RedisClient) Option {
	return func(o *options) { o.redis = c }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewClient builds a Client from cfg. A nil cfg means DefaultConfig with API
// keys taken from the environment.
func NewClient(ctx context.Context, cfg *configuration.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	cfg.ResolveAPIKeys()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm configuration: %w", err)
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          configuration.DefaultMaxIdleConns,
				IdleConnTimeout:       configuration.DefaultIdleTimeoutSeconds * time.Second,
				TLSHandshakeTimeout:   configuration.DefaultTLSTimeoutSeconds * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: cfg.HTTPTimeout,
		}
	}

	core := transport.NewHTTPHandler(httpClient, router)

	c := &Client{config: cfg, router: router, logger: o.logger}

	var attempt []transport.Middleware
	if cfg.CircuitBreaker.Enabled {
		c.breakers = circuitbreaker.New(cfg.CircuitBreaker)
		attempt = append(attempt, c.breakers.Middleware())
	}
	if cfg.RateLimit.Enabled {
		if c.limiter, err = ratelimit.New(cfg.RateLimit); err != nil {
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		attempt = append(attempt, c.limiter.Middleware())
	}
	attemptHandler := transport.Chain(core, attempt...)

	if c.retrier, err = retry.New(cfg.Retry); err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}
	retryHandler := c.retrier.Middleware()(attemptHandler)

	var call []transport.Middleware
	if cfg.Observability.LogRequests {
		call = append(call, NewLoggingMiddleware(cfg.Observability, o.logger))
	}
	c.cache = cache.New(ctx, cfg.Cache, o.redis)
	if c.cache.Enabled() {
		call = append(call, c.cache.Middleware())
	}
	c.handler = transport.Chain(retryHandler, call...)

	return c, nil
}

// Providers lists the providers the client can route to.
func (c *Client) Providers() []string { return c.router.Providers() }

// Complete sends in to its model and returns the normalized response.
func (c *Client) Complete(ctx context.Context, in domain.CompletionInput) (*domain.CompletionOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	provider, model, err := in.Model.Split()
	if err != nil {
		return nil, err
	}

	op := transport.OpText
	if in.Structured {
		op = transport.OpStructured
	}
	timeout := in.Timeout
	if timeout == 0 {
		if p, ok := c.config.Providers[provider]; ok {
			timeout = p.Timeout
		}
	}

	req := &transport.Request{
		Operation:    op,
		Provider:     provider,
		Model:        model,
		Prompt:       in.Prompt,
		SystemPrompt: in.SystemPrompt,
		MaxTokens:    in.MaxTokens,
		Temperature:  in.Temperature,
		Timeout:      timeout,
		TraceID:      uuid.NewString(),
	}
	key, err := transport.GenerateIdemKey(req)
	if err != nil {
		return nil, err
	}
	req.IdempotencyKey = key.String()

	resp, err := c.handler.Handle(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Model, err)
	}

	return &domain.CompletionOutput{
		Model:        in.Model,
		Content:      resp.Content,
		FinishReason: resp.FinishReason,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			LatencyMs:        resp.Usage.LatencyMs,
		},
		ProviderRequestIDs: resp.ProviderRequestIDs,
		CacheHit:           resp.CacheHit,
	}, nil
}

// Stats aggregates the middleware counters.
type Stats struct {
	Retry          retry.Stats           `json:"retry"`
	CircuitBreaker *circuitbreaker.Stats `json:"circuit_breaker,omitempty"`
	RateLimit      *ratelimit.Stats      `json:"rate_limit,omitempty"`
	Cache          *cache.Stats          `json:"cache,omitempty"`
}

// Stats returns a snapshot of middleware activity.
func (c *Client) Stats() Stats {
	s := Stats{Retry: c.retrier.Stats()}
	if c.breakers != nil {
		cb := c.breakers.Stats()
		s.CircuitBreaker = &cb
	}
	if c.limiter != nil {
		rl := c.limiter.Stats()
		s.RateLimit = &rl
	}
	if c.cache.Enabled() {
		cs := c.cache.Stats()
		s.Cache = &cs
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("attempts", s.Retry.TotalAttempts),
		slog.Int64("retried_ok", s.Retry.SuccessfulRetries),
		slog.Int64("retried_failed", s.Retry.FailedRetries),
	}
	if s.CircuitBreaker != nil {
		attrs = append(attrs, slog.Int64("circuit_rejected", s.CircuitBreaker.Rejected))
	}
	if s.RateLimit != nil {
		attrs = append(attrs, slog.Int64("rate_limited", s.RateLimit.Limited))
	}
	if s.Cache != nil {
		attrs = append(attrs, slog.Int64("cache_hits", s.Cache.Hits), slog.Int64("cache_misses", s.Cache.Misses))
	}
	return slog.GroupValue(attrs...)
}
