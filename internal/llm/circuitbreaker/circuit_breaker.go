// Package circuitbreaker stops calling a model that keeps failing so that
// callers fall through to their next candidate instead of waiting out
// retries against a dead endpoint.
package circuitbreaker

import (
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
)

const jitterDivisor = 10

// State is the position of a circuit.
type State int32

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen refuses calls.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker is the circuit of one model. All fields are updated atomically.
type breaker struct {
	key string

	state           atomic.Int32
	failures        atomic.Int32
	successes       atomic.Int32
	lastFailureTime atomic.Int64
	halfOpenProbes  atomic.Int32

	cfg      configuration.CircuitBreakerConfig
	adaptive *adaptiveThresholds
	now      func() time.Time

	allowed     atomic.Int64
	rejected    atomic.Int64
	transitions atomic.Int64
}

func newBreaker(key string, cfg configuration.CircuitBreakerConfig, now func() time.Time) *breaker {
	b := &breaker{key: key, cfg: cfg, now: now}
	if cfg.Adaptive {
		b.adaptive = newAdaptiveThresholds(cfg.FailureThreshold, now)
	}
	b.state.Store(int32(StateClosed))
	return b
}

func (b *breaker) jitter() time.Duration {
	j := b.cfg.OpenTimeout / jitterDivisor
	if j <= 0 {
		return 0
	}
	return rand.N(j)
}

// allow reports whether a call may proceed. When it may, release must be
// called once the call finishes.
func (b *breaker) allow() (release func(), err error) {
	noop := func() {}
	switch State(b.state.Load()) {
	case StateClosed:
		b.allowed.Add(1)
		return noop, nil

	case StateOpen:
		last := time.Unix(0, b.lastFailureTime.Load())
		if b.now().Sub(last) <= b.cfg.OpenTimeout+b.jitter() {
			b.rejected.Add(1)
			return noop, b.refusal("CIRCUIT_OPEN", "circuit breaker is open")
		}
		b.transition(StateOpen, StateHalfOpen)
	}
	return b.probe()
}

// probe claims one half-open probe slot.
func (b *breaker) probe() (func(), error) {
	for {
		cur := b.halfOpenProbes.Load()
		if int(cur) >= b.cfg.HalfOpenProbes {
			b.rejected.Add(1)
			return func() {}, b.refusal("CIRCUIT_HALF_OPEN_LIMIT", "half-open probe limit reached")
		}
		if b.halfOpenProbes.CompareAndSwap(cur, cur+1) {
			b.allowed.Add(1)
			return func() {
				for {
					n := b.halfOpenProbes.Load()
					if n == 0 || b.halfOpenProbes.CompareAndSwap(n, n-1) {
						return
					}
				}
			}, nil
		}
	}
}

func (b *breaker) refusal(code, msg string) error {
	return &llmerrors.ProviderError{
		Provider: b.key,
		Code:     code,
		Message:  msg,
		Type:     llmerrors.ErrorTypeCircuitBreaker,
	}
}

func (b *breaker) recordSuccess() {
	if b.adaptive != nil {
		b.adaptive.record(true)
	}
	switch State(b.state.Load()) {
	case StateClosed:
		b.failures.Store(0)
	case StateHalfOpen:
		if int(b.successes.Add(1)) >= b.cfg.SuccessThreshold {
			b.transition(StateHalfOpen, StateClosed)
		}
	}
}

func (b *breaker) recordFailure() {
	b.lastFailureTime.Store(b.now().UnixNano())
	if b.adaptive != nil {
		b.adaptive.record(false)
	}
	switch State(b.state.Load()) {
	case StateClosed:
		threshold := b.cfg.FailureThreshold
		if b.adaptive != nil {
			threshold = b.adaptive.threshold()
		}
		if int(b.failures.Add(1)) >= threshold {
			b.transition(StateClosed, StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateHalfOpen, StateOpen)
	}
}

// transition moves from one state to another, resetting the counters.
// It does nothing if another goroutine already moved the circuit.
func (b *breaker) transition(from, to State) {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return
	}
	b.failures.Store(0)
	b.successes.Store(0)
	b.halfOpenProbes.Store(0)
	b.transitions.Add(1)
	slog.Info("circuit breaker state transition", "model", b.key, "from", from.String(), "to", to.String())
}
