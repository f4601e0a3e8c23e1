package activity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-synth/pkg/events"
)

type recordingSink struct {
	mu    sync.Mutex
	fails int
	got   []events.Envelope
}

func (s *recordingSink) Append(_ context.Context, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("sink unavailable")
	}
	s.got = append(s.got, env)
	return nil
}

func TestBase_RunInfoOutsideActivity(t *testing.T) {
	b := NewBase(nil, "test")
	info := b.RunInfo(context.Background())
	assert.Equal(t, "local", info.RunID)
	assert.Equal(t, int32(1), info.Attempt)
}

func TestBase_Emit(t *testing.T) {
	t.Run("retries once", func(t *testing.T) {
		sink := &recordingSink{fails: 1}
		b := NewBase(sink, "stage-activity")
		b.Emit(context.Background(), events.TypeStageCompleted, "subjects", map[string]int{"rows": 2})

		require.Len(t, sink.got, 1)
		env := sink.got[0]
		assert.Equal(t, "stage-activity", env.Source)
		assert.Equal(t, "local:subjects", env.IdempotencyKey)
		assert.Equal(t, "local", env.WorkflowID)
	})

	t.Run("gives up", func(t *testing.T) {
		sink := &recordingSink{fails: 5}
		b := NewBase(sink, "stage-activity")
		b.Emit(context.Background(), events.TypeStageFailed, "subjects", nil)
		assert.Empty(t, sink.got)
	})

	t.Run("nil sink", func(t *testing.T) {
		b := NewBase(nil, "stage-activity")
		assert.NotPanics(t, func() {
			b.Emit(context.Background(), events.TypeStageCompleted, "k", nil)
		})
	})

	t.Run("helpers ignore plain contexts", func(t *testing.T) {
		assert.NotPanics(t, func() {
			SafeLog(context.Background(), "msg")
			SafeLogError(context.Background(), "msg")
			RecordHeartbeat(context.Background(), 1)
		})
	})
}
