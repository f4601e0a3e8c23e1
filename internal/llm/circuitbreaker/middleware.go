package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-synth/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/llm/transport"
)

// Breakers holds one circuit per provider and model.
type Breakers struct {
	cfg configuration.CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker
}

// New creates an empty set of circuits.
func New(cfg configuration.CircuitBreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, now: time.Now, breakers: make(map[string]*breaker)}
}

func key(req *transport.Request) string { return req.Provider + ":" + req.Model }

func (b *Breakers) get(k string) *breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	br, ok := b.breakers[k]
	if !ok {
		br = newBreaker(k, b.cfg, b.now)
		b.breakers[k] = br
	}
	return br
}

// State returns the circuit state of a "provider:model" key.
func (b *Breakers) State(k string) State {
	return State(b.get(k).state.Load())
}

// Middleware refuses calls to models whose circuit is open. Only failures
// that point at the provider's health count against the circuit.
func (b *Breakers) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			br := b.get(key(req))
			release, err := br.allow()
			if err != nil {
				return nil, err
			}
			defer release()

			resp, err := next.Handle(ctx, req)
			switch {
			case err == nil:
				br.recordSuccess()
			case countsAsFailure(err):
				br.recordFailure()
			}
			return resp, err
		})
	}
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	wfErr := llmerrors.ClassifyLLMError(err)
	if wfErr == nil {
		return false
	}
	switch wfErr.Type {
	case llmerrors.ErrorTypeProvider, llmerrors.ErrorTypeNetwork, llmerrors.ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Stats summarizes every circuit.
type Stats struct {
	Breakers    int            `json:"breakers"`
	StateCount  map[string]int `json:"state_count"`
	Allowed     int64          `json:"allowed"`
	Rejected    int64          `json:"rejected"`
	Transitions int64          `json:"transitions"`
}

// Stats returns a snapshot of all circuits.
func (b *Breakers) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{Breakers: len(b.breakers), StateCount: make(map[string]int)}
	for _, br := range b.breakers {
		s.StateCount[State(br.state.Load()).String()]++
		s.Allowed += br.allowed.Load()
		s.Rejected += br.rejected.Load()
		s.Transitions += br.transitions.Load()
	}
	return s
}
