package configuration

import (
	"time"
)

// HTTP and connection constants.
const (
	DefaultMaxIdleConns        = 100
	DefaultIdleTimeoutSeconds  = 90
	DefaultTLSTimeoutSeconds   = 10
	DefaultHTTPTimeoutSeconds  = 120
	ServerErrorStatusThreshold = 500
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultMaxElapsedTime    = 3 * time.Minute
	DefaultInitialInterval   = 500 * time.Millisecond
	DefaultMaxInterval       = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Rate limiting constants.
const (
	DefaultTokensPerSecond = 5
	DefaultBurstSize       = 10
)

// Cache constants.
const (
	DefaultCacheTTL       = 7 * 24 * time.Hour
	DefaultRedisAddr      = "localhost:6379"
	DefaultCacheKeyPrefix = "synth:llm:"
)

// Circuit breaker constants.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultHalfOpenProbes   = 1
	DefaultOpenTimeout      = 30 * time.Second
)

// DefaultMaxConcurrency is the per-batch fan-out of the generator.
const DefaultMaxConcurrency = 5

// Provider names and default endpoints.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"

	OpenAIEndpoint     = "https://api.openai.com/v1"
	AnthropicEndpoint  = "https://api.anthropic.com/v1"
	GoogleEndpoint     = "https://generativelanguage.googleapis.com/v1beta"
	OpenRouterEndpoint = "https://openrouter.ai/api/v1"
)

// DefaultConfig returns a configuration for all four providers with keys
// read from their conventional environment variables. The response cache is
// disabled until a Redis address is configured.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeoutSeconds * time.Second,
		Providers: map[string]ProviderConfig{
			ProviderOpenAI:     {Endpoint: OpenAIEndpoint, APIKeyEnv: "OPENAI_API_KEY"},
			ProviderAnthropic:  {Endpoint: AnthropicEndpoint, APIKeyEnv: "ANTHROPIC_API_KEY"},
			ProviderGoogle:     {Endpoint: GoogleEndpoint, APIKeyEnv: "GEMINI_API_KEY"},
			ProviderOpenRouter: {Endpoint: OpenRouterEndpoint, APIKeyEnv: "OPENROUTER_API_KEY"},
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			MaxElapsedTime:  DefaultMaxElapsedTime,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			TokensPerSecond: DefaultTokensPerSecond,
			BurstSize:       DefaultBurstSize,
			Wait:            true,
		},
		Cache: CacheConfig{
			Enabled:   false,
			TTL:       DefaultCacheTTL,
			RedisAddr: DefaultRedisAddr,
			KeyPrefix: DefaultCacheKeyPrefix,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: DefaultFailureThreshold,
			SuccessThreshold: DefaultSuccessThreshold,
			HalfOpenProbes:   DefaultHalfOpenProbes,
			OpenTimeout:      DefaultOpenTimeout,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogFormat:     "text",
			LogRequests:   true,
			RedactPrompts: true,
		},
		MaxConcurrency: DefaultMaxConcurrency,
	}
}
