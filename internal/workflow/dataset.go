package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-synth/internal/activity"
	"github.com/ahrav/go-synth/internal/pipeline"
)

// Activity timeouts.
const (
	StageTimeout     = 2 * time.Hour
	StatTimeout      = 30 * time.Second
	HeartbeatTimeout = 5 * time.Minute
)

// DatasetInput starts a pipeline run.
type DatasetInput struct {
	DataDir     string        `json:"data_dir"`
	SettleDelay time.Duration `json:"settle_delay"`
	Pause       time.Duration `json:"pause"`
}

// DatasetResult describes a completed run.
type DatasetResult struct {
	State   pipeline.State        `json:"state"`
	Events  []pipeline.Event      `json:"events"`
	History []pipeline.Transition `json:"history"`
}

// DatasetWorkflow runs the default plan rooted at in.DataDir. Any halt of
// the driver fails the workflow with a non-retryable application error
// whose type names the cause.
func DatasetWorkflow(ctx workflow.Context, in DatasetInput) (*DatasetResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "dataset.v", workflow.DefaultVersion, currentVersion)

	if in.DataDir == "" {
		return nil, temporal.NewNonRetryableApplicationError("data_dir is required", "Validation", nil)
	}

	host := &workflowHost{ctx: ctx}
	driver := pipeline.NewDriver(pipeline.DefaultPlan(in.DataDir), host,
		pipeline.WithDelays(in.SettleDelay, in.Pause))

	if err := driver.Run(context.Background()); err != nil {
		workflow.GetLogger(ctx).Error("pipeline halted", "state", driver.State(), "error", err)
		var canceled *temporal.CanceledError
		if errors.As(err, &canceled) {
			return nil, err
		}
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), haltType(err), err)
	}

	return &DatasetResult{
		State:   driver.State(),
		Events:  host.events,
		History: driver.History(),
	}, nil
}

func haltType(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrSeedMissing):
		return "SeedMissing"
	case errors.Is(err, pipeline.ErrInputMissing):
		return "InputMissing"
	case errors.Is(err, pipeline.ErrOutputMissing):
		return "OutputMissing"
	default:
		return "StageFailed"
	}
}

// workflowHost implements pipeline.Host on top of a workflow context. The
// context.Context arguments are ignored; cancellation arrives through the
// workflow context.
type workflowHost struct {
	ctx    workflow.Context
	events []pipeline.Event
}

var acts *activity.StageActivities

func (h *workflowHost) Stat(_ context.Context, path string) (int64, bool, error) {
	ctx := workflow.WithActivityOptions(h.ctx, workflow.ActivityOptions{
		StartToCloseTimeout: StatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	var st activity.FileStat
	if err := workflow.ExecuteActivity(ctx, acts.StatFile, path).Get(ctx, &st); err != nil {
		return 0, false, statError(err)
	}
	return st.Size, st.Exists, nil
}

// statError marks cancellation so the driver stops instead of reading the
// failure as a missing file.
func statError(err error) error {
	if temporal.IsCanceledError(err) {
		return fmt.Errorf("%w: %w", pipeline.ErrHostAborted, err)
	}
	return err
}

// RunStage runs the step exactly once. Model calls are retried inside the
// stage; a failed stage is never rerun.
func (h *workflowHost) RunStage(_ context.Context, step pipeline.Step) error {
	ctx := workflow.WithActivityOptions(h.ctx, workflow.ActivityOptions{
		StartToCloseTimeout: StageTimeout,
		HeartbeatTimeout:    HeartbeatTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	in := activity.StageInput{Stage: step.Stage, Input: step.Input, Output: step.Output}
	return workflow.ExecuteActivity(ctx, acts.RunStage, in).Get(ctx, nil)
}

func (h *workflowHost) Sleep(_ context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return workflow.Sleep(h.ctx, d)
}

func (h *workflowHost) Notify(_ context.Context, ev pipeline.Event) {
	h.events = append(h.events, ev)
	workflow.GetLogger(h.ctx).Info(ev.String(), "kind", ev.Kind, "state", ev.State)
}
