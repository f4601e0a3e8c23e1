// Package events wraps pipeline notifications in a common envelope and
// delivers them to a sink.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the stage activities.
const (
	TypeStageCompleted = "pipeline.stage_completed"
	TypeStageFailed    = "pipeline.stage_failed"
)

// Version is the envelope schema version.
const Version = "1.0.0"

// Envelope carries one event with the metadata needed to route and
// deduplicate it.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is derived from the workflow run and event content so
	// a retried activity emits the same key.
	IdempotencyKey string `json:"idempotency_key"`

	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(typ, source, idemKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Envelope{
		ID:             uuid.NewString(),
		Type:           typ,
		Source:         source,
		Version:        Version,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idemKey,
		Payload:        raw,
	}, nil
}

// EventSink delivers envelopes. Append should treat a repeated
// IdempotencyKey as a no-op. Callers never fail their own work because a
// sink failed.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }

// LogSink writes each event as a structured log record, dropping
// duplicates by idempotency key.
type LogSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events"), seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, env Envelope) error {
	if env.IdempotencyKey != "" {
		s.mu.Lock()
		_, dup := s.seen[env.IdempotencyKey]
		s.seen[env.IdempotencyKey] = struct{}{}
		s.mu.Unlock()
		if dup {
			return nil
		}
	}
	s.logger.InfoContext(ctx, "event",
		"type", env.Type,
		"source", env.Source,
		"workflow_id", env.WorkflowID,
		"run_id", env.RunID,
		"payload", string(env.Payload))
	return nil
}
