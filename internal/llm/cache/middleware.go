// Package cache stores successful model responses in Redis keyed by the
// request's idempotency key, so re-running a stage over the same inputs
// does not pay for the same completions twice.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm/configuration"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

const (
	defaultPoolSize   = 10
	connectionTimeout = 5 * time.Second
)

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Entry is the stored form of a response.
type Entry struct {
	Provider           string                    `json:"provider"`
	Model              string                    `json:"model"`
	Content            string                    `json:"content"`
	FinishReason       domain.FinishReason       `json:"finish_reason"`
	ProviderRequestIDs []string                  `json:"provider_request_ids,omitempty"`
	Usage              transport.NormalizedUsage `json:"usage"`
	StoredAtUnixMs     int64                     `json:"stored_at_ms"`
}

// Cache is the response cache. A disabled Cache passes every request through.
type Cache struct {
	client  RedisClient
	ttl     time.Duration
	prefix  string
	enabled bool

	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// New creates a Cache. When client is nil and caching is enabled a Redis
// client is dialed from cfg; if Redis does not answer a ping the cache is
// disabled and requests go straight to the provider.
func New(ctx context.Context, cfg configuration.CacheConfig, client RedisClient) *Cache {
	logger := slog.Default().With("component", "cache")

	if cfg.Enabled && client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: defaultPoolSize,
		})
	}
	if cfg.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis connection failed, cache disabled", "addr", cfg.RedisAddr, "error", err)
			cfg.Enabled = false
		}
	}

	return &Cache{
		client:  client,
		ttl:     cfg.TTL,
		prefix:  cfg.KeyPrefix,
		enabled: cfg.Enabled,
		logger:  logger,
	}
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool { return c.enabled }

// Middleware returns the caching middleware. Errors are never cached, and a
// Redis failure degrades to an uncached call instead of failing the request.
func (c *Cache) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !c.enabled {
				return next.Handle(ctx, req)
			}

			key, err := c.key(req)
			if err != nil {
				c.logger.Warn("cache key generation failed", "error", err)
				return next.Handle(ctx, req)
			}

			cached, err := c.get(ctx, key)
			switch {
			case err == nil:
				c.hits.Add(1)
				c.logger.Debug("cache hit", "provider", req.Provider, "model", req.Model)
				return cached, nil
			case errors.Is(err, redis.Nil):
				c.misses.Add(1)
			default:
				c.errors.Add(1)
				c.misses.Add(1)
				c.logger.Warn("cache get error", "error", err)
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}

			if err := c.set(ctx, key, req, resp); err != nil {
				c.errors.Add(1)
				c.logger.Warn("cache set error", "error", err)
			}
			return resp, nil
		})
	}
}

func (c *Cache) key(req *transport.Request) (string, error) {
	idem := transport.IdemKey(req.IdempotencyKey)
	if idem == "" {
		var err error
		if idem, err = transport.GenerateIdemKey(req); err != nil {
			return "", err
		}
	}
	return transport.CacheKey(c.prefix, req.Operation, idem), nil
}

func (c *Cache) get(ctx context.Context, key string) (*transport.Response, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Content == "" {
		c.logger.Warn("dropping corrupt cache entry", "key", key)
		_ = c.client.Del(ctx, key).Err()
		return nil, redis.Nil
	}

	return &transport.Response{
		Content:            entry.Content,
		FinishReason:       entry.FinishReason,
		ProviderRequestIDs: entry.ProviderRequestIDs,
		Usage:              entry.Usage,
		CacheHit:           true,
	}, nil
}

func (c *Cache) set(ctx context.Context, key string, req *transport.Request, resp *transport.Response) error {
	data, err := json.Marshal(Entry{
		Provider:           req.Provider,
		Model:              req.Model,
		Content:            resp.Content,
		FinishReason:       resp.FinishReason,
		ProviderRequestIDs: resp.ProviderRequestIDs,
		Usage:              resp.Usage,
		StoredAtUnixMs:     time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Hits: hits, Misses: misses, Errors: c.errors.Load(), HitRate: rate}
}
