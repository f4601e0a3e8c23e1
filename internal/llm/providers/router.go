// Package providers adapts the normalized transport request to each
// provider's HTTP API.
package providers

import (
	"fmt"
	"sort"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

// Supported provider identifiers. They match the provider prefix of a
// model id and the keys of configuration.Config.Providers.
const (
	ProviderOpenAI     = configuration.ProviderOpenAI
	ProviderAnthropic  = configuration.ProviderAnthropic
	ProviderGoogle     = configuration.ProviderGoogle
	ProviderOpenRouter = configuration.ProviderOpenRouter
)

// Router is a transport.Router over a fixed adapter registry.
type Router struct {
	adapters map[string]transport.ProviderAdapter
}

// NewRouter creates an adapter for every configured provider.
func NewRouter(configs map[string]configuration.ProviderConfig) (*Router, error) {
	adapters := make(map[string]transport.ProviderAdapter, len(configs))
	for name, cfg := range configs {
		switch name {
		case ProviderOpenAI:
			adapters[name] = NewOpenAIAdapter(cfg)
		case ProviderAnthropic:
			adapters[name] = NewAnthropicAdapter(cfg)
		case ProviderGoogle:
			adapters[name] = NewGoogleAdapter(cfg)
		case ProviderOpenRouter:
			adapters[name] = NewOpenRouterAdapter(cfg)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
	}
	return &Router{adapters: adapters}, nil
}

// Pick returns the adapter registered for provider.
func (r *Router) Pick(provider, _ string) (transport.ProviderAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}

// Providers lists the registered provider names in sorted order.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
