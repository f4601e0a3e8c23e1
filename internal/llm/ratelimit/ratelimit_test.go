package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

var okHandler = transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
	return &transport.Response{Content: "ok"}, nil
})

func TestNew_Validation(t *testing.T) {
	_, err := New(configuration.RateLimitConfig{TokensPerSecond: 0, BurstSize: 1})
	assert.ErrorIs(t, err, errInvalidRate)
	_, err = New(configuration.RateLimitConfig{TokensPerSecond: 1, BurstSize: 0})
	assert.ErrorIs(t, err, errInvalidBurst)
}

func TestLimiter_FailFast(t *testing.T) {
	l, err := New(configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 1, BurstSize: 2})
	require.NoError(t, err)
	h := l.Middleware()(okHandler)

	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini"}
	for i := 0; i < 2; i++ {
		_, err := h.Handle(context.Background(), req)
		require.NoError(t, err)
	}

	_, err = h.Handle(context.Background(), req)
	var rlErr *llmerrors.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.True(t, rlErr.LocalLimit)
	assert.GreaterOrEqual(t, rlErr.RetryAfter, minRetryAfter)
	assert.True(t, llmerrors.IsRetryableError(err))

	t.Run("separate bucket per model", func(t *testing.T) {
		_, err := h.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o"})
		require.NoError(t, err)
	})

	stats := l.Stats()
	assert.Equal(t, int64(3), stats.Allowed)
	assert.Equal(t, int64(1), stats.Limited)
	assert.Equal(t, 2, stats.Keys)
}

func TestLimiter_Wait(t *testing.T) {
	l, err := New(configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 50, BurstSize: 1, Wait: true})
	require.NoError(t, err)
	h := l.Middleware()(okHandler)
	req := &transport.Request{Provider: "openrouter", Model: "anthropic/claude-3.5-sonnet"}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := h.Handle(context.Background(), req)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, int64(2), l.Stats().Waited)

	t.Run("wait honors cancellation", func(t *testing.T) {
		slow, err := New(configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 0.001, BurstSize: 1, Wait: true})
		require.NoError(t, err)
		h := slow.Middleware()(okHandler)
		_, err = h.Handle(context.Background(), req)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = h.Handle(ctx, req)
		require.Error(t, err)
	})
}

func TestLimiter_Concurrent(t *testing.T) {
	l, err := New(configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 1000, BurstSize: 1000})
	require.NoError(t, err)
	h := l.Middleware()(okHandler)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "m"})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), l.Stats().Allowed)
	assert.Equal(t, 1, l.Stats().Keys)
}
