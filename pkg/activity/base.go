// Package activity holds the plumbing shared by Temporal activities: run
// metadata, best-effort event emission and logging that also works when an
// activity method is called directly from a test.
package activity

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-synth/pkg/events"
)

// RunInfo identifies the workflow run an activity belongs to.
type RunInfo struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// Base is embedded by activity structs.
type Base struct {
	sink   events.EventSink
	source string
}

// NewBase creates a Base emitting to sink under source. A nil sink disables
// emission.
func NewBase(sink events.EventSink, source string) Base {
	return Base{sink: sink, source: source}
}

// RunInfo returns the run metadata of ctx. Outside an activity context it
// returns fixed local identifiers.
func (b *Base) RunInfo(ctx context.Context) (info RunInfo) {
	defer func() {
		if recover() != nil {
			info = RunInfo{WorkflowID: "local", RunID: "local", ActivityID: "local", Attempt: 1}
		}
	}()
	ai := activity.GetInfo(ctx)
	return RunInfo{
		WorkflowID: ai.WorkflowExecution.ID,
		RunID:      ai.WorkflowExecution.RunID,
		ActivityID: ai.ActivityID,
		Attempt:    ai.Attempt,
	}
}

// Emit builds an envelope for payload and delivers it with EmitSafe. The
// idempotency key combines the run id with key.
func (b *Base) Emit(ctx context.Context, typ, key string, payload any) {
	if b.sink == nil {
		return
	}
	info := b.RunInfo(ctx)
	env, err := events.NewEnvelope(typ, b.source, info.RunID+":"+key, payload)
	if err != nil {
		SafeLogError(ctx, "event not built", "event_type", typ, "error", err)
		return
	}
	env.WorkflowID = info.WorkflowID
	env.RunID = info.RunID
	b.EmitSafe(ctx, env)
}

// EmitSafe appends env to the sink, retrying once. Failures are logged and
// never returned.
func (b *Base) EmitSafe(ctx context.Context, env events.Envelope) {
	if b.sink == nil {
		return
	}

	const maxAttempts = 2
	const retryDelay = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, "event emission cancelled", "event_type", env.Type)
				return
			}
		}
		if err := b.sink.Append(ctx, env); err != nil {
			lastErr = err
			continue
		}
		SafeLog(ctx, "event emitted", "event_type", env.Type, "idempotency_key", env.IdempotencyKey)
		return
	}

	SafeLogError(ctx, fmt.Sprintf("event dropped after %d attempts", maxAttempts),
		"event_type", env.Type,
		"error", lastErr)
}

// SafeLog logs at info level through the activity logger. It is a no-op
// outside an activity context.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError is SafeLog at error level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat records a heartbeat, ignoring non-activity contexts.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() { _ = recover() }()
	activity.RecordHeartbeat(ctx, details...)
}
