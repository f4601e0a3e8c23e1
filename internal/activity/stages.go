// Package activity exposes the synthesis stages as Temporal activities.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/stages"
	base "github.com/ahrav/go-synth/pkg/activity"
	"github.com/ahrav/go-synth/pkg/events"
)

// Source tags the events emitted by these activities.
const Source = "stage-activity"

// HeartbeatInterval is how often RunStage heartbeats while a stage runs.
const HeartbeatInterval = 30 * time.Second

// StageRunner runs one stage over its files.
type StageRunner interface {
	Run(ctx context.Context, stage string, files stages.Files) (stages.Report, error)
}

// StageInput selects the stage and its files.
type StageInput struct {
	Stage  string `json:"stage"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Validate checks that the input names a stage and an output file.
func (in StageInput) Validate() error {
	if in.Stage == "" || in.Output == "" {
		return fmt.Errorf("%w: stage and output are required", ErrActivityValidation)
	}
	return nil
}

// FileStat is the result of StatFile.
type FileStat struct {
	Size   int64 `json:"size"`
	Exists bool  `json:"exists"`
}

// StageActivities runs stages and inspects dataset files on the worker's
// filesystem.
type StageActivities struct {
	base.Base
	runner StageRunner
}

// NewStageActivities creates the activities.
func NewStageActivities(b base.Base, runner StageRunner) *StageActivities {
	return &StageActivities{Base: b, runner: runner}
}

// RunStage runs in.Stage to completion and reports its counts.
func (a *StageActivities) RunStage(ctx context.Context, in StageInput) (*stages.Report, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(ErrTypeValidation, err, "invalid stage input")
	}

	base.SafeLog(ctx, "stage started", "stage", in.Stage, "input", in.Input, "output", in.Output)

	stop := heartbeat(ctx, in.Stage)
	rep, err := a.runner.Run(ctx, in.Stage, stages.Files{Input: in.Input, Output: in.Output})
	stop()
	if err != nil {
		base.SafeLogError(ctx, "stage failed", "stage", in.Stage, "error", err)
		a.Emit(ctx, events.TypeStageFailed, in.Stage, map[string]string{"stage": in.Stage, "error": err.Error()})
		return nil, classify(err)
	}

	base.SafeLog(ctx, "stage completed", "stage", in.Stage, "rows", rep.Rows, "outputs", rep.Outputs)
	a.Emit(ctx, events.TypeStageCompleted, in.Stage, rep)
	return &rep, nil
}

// heartbeat records a heartbeat now and every HeartbeatInterval until the
// returned stop function is called.
func heartbeat(ctx context.Context, stage string) (stop func()) {
	base.RecordHeartbeat(ctx, stage)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		t := time.NewTicker(HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				base.RecordHeartbeat(ctx, stage)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// StatFile reports the size of path. A missing file is not an error.
func (a *StageActivities) StatFile(_ context.Context, path string) (FileStat, error) {
	size, exists, err := dataset.Stat(path)
	if err != nil {
		return FileStat{}, err
	}
	return FileStat{Size: size, Exists: exists}, nil
}
