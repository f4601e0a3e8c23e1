// Package configuration holds the settings for the model-calling stack:
// provider endpoints and credentials plus the retry, rate limit and cache
// middleware that wrap every call.
package configuration

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Errors returned by Validate.
var (
	ErrNoProviders       = errors.New("no providers configured")
	ErrInvalidRetry      = errors.New("invalid retry configuration")
	ErrInvalidRateLimit  = errors.New("invalid rate limit configuration")
	ErrInvalidCache      = errors.New("invalid cache configuration")
	ErrInvalidBreaker    = errors.New("invalid circuit breaker configuration")
	ErrInvalidConcurrent = errors.New("max concurrency must be positive")
)

// Config is the complete configuration of the model client.
type Config struct {
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`
	HTTPClient  *http.Client  `yaml:"-" json:"-"`

	// Providers is keyed by the provider prefix of a model id
	// ("openai", "anthropic", "google", "openrouter").
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`

	Retry          RetryConfig          `yaml:"retry" json:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" json:"rate_limit"`
	Cache          CacheConfig          `yaml:"cache" json:"cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Observability  ObservabilityConfig  `yaml:"observability" json:"observability"`

	// MaxConcurrency bounds the in-flight calls of one batch.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
}

// ProviderConfig holds the endpoint and credentials of one provider.
type ProviderConfig struct {
	Endpoint  string            `yaml:"endpoint" json:"endpoint"`
	APIKey    string            `yaml:"-" json:"-"` // Sensitive, never serialized
	APIKeyEnv string            `yaml:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration     `yaml:"timeout" json:"timeout"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
}

// RetryConfig controls exponential backoff with jitter for failed calls.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time" json:"max_elapsed_time"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
	Multiplier      float64       `yaml:"multiplier" json:"multiplier"`
	UseJitter       bool          `yaml:"use_jitter" json:"use_jitter"`
}

// RateLimitConfig controls the process-local token buckets, one per
// provider and model.
type RateLimitConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	TokensPerSecond float64 `yaml:"tokens_per_second" json:"tokens_per_second"`
	BurstSize       int     `yaml:"burst_size" json:"burst_size"`
	// Wait makes callers block for a token instead of failing fast with a
	// RateLimitError.
	Wait bool `yaml:"wait" json:"wait"`
}

// CacheConfig controls the Redis response cache. The cache is skipped
// entirely when Redis is unreachable at startup.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"-" json:"-"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix" json:"key_prefix"`
}

// CircuitBreakerConfig controls the per-model circuit breakers. An open
// circuit refuses calls until OpenTimeout has passed, then lets
// HalfOpenProbes calls through to test recovery.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold" json:"success_threshold"`
	HalfOpenProbes   int           `yaml:"half_open_probes" json:"half_open_probes"`
	OpenTimeout      time.Duration `yaml:"open_timeout" json:"open_timeout"`
	// Adaptive lowers the failure threshold while the recent error rate
	// is high.
	Adaptive bool `yaml:"adaptive" json:"adaptive"`
}

// ObservabilityConfig controls request logging.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level"`
	LogFormat     string `yaml:"log_format" json:"log_format"`
	LogRequests   bool   `yaml:"log_requests" json:"log_requests"`
	RedactPrompts bool   `yaml:"redact_prompts" json:"redact_prompts"`
}

// ResolveAPIKeys fills APIKey from the APIKeyEnv variable of every provider
// whose key is not already set.
func (c *Config) ResolveAPIKeys() {
	for name, p := range c.Providers {
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
			c.Providers[name] = p
		}
	}
}

// Validate checks the configuration for values the middleware cannot use.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return ErrNoProviders
	}
	if c.MaxConcurrency <= 0 {
		return ErrInvalidConcurrent
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts %d < 1", ErrInvalidRetry, c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: multiplier %.2f < 1", ErrInvalidRetry, c.Retry.Multiplier)
	}
	if c.Retry.InitialInterval > c.Retry.MaxInterval {
		return fmt.Errorf("%w: initial_interval exceeds max_interval", ErrInvalidRetry)
	}
	if c.RateLimit.Enabled && (c.RateLimit.TokensPerSecond <= 0 || c.RateLimit.BurstSize <= 0) {
		return fmt.Errorf("%w: tokens_per_second and burst_size must be positive", ErrInvalidRateLimit)
	}
	if cb := c.CircuitBreaker; cb.Enabled &&
		(cb.FailureThreshold <= 0 || cb.SuccessThreshold <= 0 || cb.HalfOpenProbes <= 0 || cb.OpenTimeout <= 0) {
		return fmt.Errorf("%w: thresholds, probes and open_timeout must be positive", ErrInvalidBreaker)
	}
	if c.Cache.Enabled && (c.Cache.TTL <= 0 || c.Cache.RedisAddr == "") {
		return fmt.Errorf("%w: ttl and redis_addr are required", ErrInvalidCache)
	}
	return nil
}
