// Package pipeline runs the synthesis stages in a fixed order, verifying
// after each one that it produced a non-empty output file. The Driver is a
// state machine over a Host, so the same sequence can run as local
// processes or inside a durable workflow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Delays between steps.
const (
	DefaultSettleDelay = 2 * time.Second
	DefaultPause       = 5 * time.Second
)

// State is the driver's position in the run.
type State string

const (
	StateNotStarted      State = "not_started"
	StateStageRunning    State = "stage_running"
	StateStageVerified   State = "stage_verified"
	StateDataPrepRunning State = "data_prep_running"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// Host performs the side effects of a run.
type Host interface {
	// Stat reports the size of path and whether it exists.
	Stat(ctx context.Context, path string) (size int64, exists bool, err error)
	// RunStage runs one step to completion.
	RunStage(ctx context.Context, step Step) error
	Sleep(ctx context.Context, d time.Duration) error
	Notify(ctx context.Context, ev Event)
}

// Transition records a state change, with the index of the step involved
// (-1 for none).
type Transition struct {
	State State `json:"state"`
	Step  int   `json:"step"`
}

// Driver executes a Plan. It is not safe for concurrent use and runs once.
type Driver struct {
	plan   Plan
	host   Host
	settle time.Duration
	pause  time.Duration

	state   State
	history []Transition
}

// Option customizes a Driver.
type Option func(*Driver)

// WithDelays overrides the settle delay after each step and the pause
// between steps.
func WithDelays(settle, pause time.Duration) Option {
	return func(d *Driver) {
		d.settle = settle
		d.pause = pause
	}
}

// NewDriver creates a Driver in StateNotStarted.
func NewDriver(plan Plan, host Host, opts ...Option) *Driver {
	d := &Driver{
		plan:   plan,
		host:   host,
		settle: DefaultSettleDelay,
		pause:  DefaultPause,
		state:  StateNotStarted,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// History returns every transition taken so far.
func (d *Driver) History() []Transition {
	return append([]Transition(nil), d.history...)
}

func (d *Driver) enter(s State, step int) {
	d.state = s
	d.history = append(d.history, Transition{State: s, Step: step})
}

func (d *Driver) fail(step int, err error) error {
	d.enter(StateFailed, step)
	return err
}

// Run executes the plan. It returns nil only when the run reaches
// StateCompleted.
func (d *Driver) Run(ctx context.Context) error {
	d.host.Notify(ctx, Event{Kind: EventStart, State: d.state})

	ok, err := d.checkFile(ctx, d.plan.Seed)
	if err != nil {
		return d.fail(-1, err)
	}
	if !ok {
		d.host.Notify(ctx, Event{Kind: EventSeedMissing, State: StateFailed, Path: d.plan.Seed})
		return d.fail(-1, fmt.Errorf("%w: %s", ErrSeedMissing, d.plan.Seed))
	}
	d.host.Notify(ctx, Event{Kind: EventSeedVerified, State: d.state, Path: d.plan.Seed})

	for i, step := range d.plan.Steps {
		if !step.Required {
			ok, err := d.checkFile(ctx, step.Output)
			if err != nil {
				return d.fail(i, err)
			}
			if ok {
				d.host.Notify(ctx, Event{Kind: EventStepSkipped, State: d.state, Step: step.Title})
				continue
			}
		}

		if i > 0 {
			prev := d.plan.Steps[i-1].Output
			ok, err := d.checkFile(ctx, prev)
			if err != nil {
				return d.fail(i, err)
			}
			if !ok {
				d.host.Notify(ctx, Event{Kind: EventInputMissing, State: StateFailed, Path: prev})
				return d.fail(i, fmt.Errorf("%w: %s", ErrInputMissing, prev))
			}
		}

		d.enter(StateStageRunning, i)
		if err := d.runStep(ctx, step); err != nil {
			return d.fail(i, err)
		}
		d.enter(StateStageVerified, i)

		if err := d.host.Sleep(ctx, d.pause); err != nil {
			return d.fail(i, err)
		}
	}

	prep := d.plan.DataPrep
	ok, err = d.checkFile(ctx, prep.Input)
	if err != nil {
		return d.fail(len(d.plan.Steps), err)
	}
	if !ok {
		d.host.Notify(ctx, Event{Kind: EventInputMissing, State: StateFailed, Path: prep.Input})
		return d.fail(len(d.plan.Steps), fmt.Errorf("%w: %s", ErrInputMissing, prep.Input))
	}

	d.enter(StateDataPrepRunning, len(d.plan.Steps))
	if err := d.runStep(ctx, prep); err != nil {
		return d.fail(len(d.plan.Steps), err)
	}
	d.enter(StateCompleted, -1)
	d.host.Notify(ctx, Event{Kind: EventCompleted, State: d.state})
	return nil
}

// runStep runs step, waits the settle delay and verifies its output.
func (d *Driver) runStep(ctx context.Context, step Step) error {
	d.host.Notify(ctx, Event{Kind: EventStepStarted, State: d.state, Step: step.Title})

	stepErr := d.host.RunStage(ctx, step)
	if stepErr != nil {
		stepErr = fmt.Errorf("%w: %s: %w", ErrStageFailed, step.Stage, stepErr)
	} else if err := d.host.Sleep(ctx, d.settle); err != nil {
		stepErr = err
	} else if step.Output != "" {
		ok, err := d.checkFile(ctx, step.Output)
		switch {
		case err != nil:
			stepErr = err
		case !ok:
			stepErr = &OutputError{Path: step.Output}
		}
	}

	if stepErr != nil {
		d.host.Notify(ctx, Event{Kind: EventStepFailed, State: StateFailed, Step: step.Title, Error: stepErr.Error()})
		return stepErr
	}
	d.host.Notify(ctx, Event{Kind: EventStepSucceeded, State: d.state, Step: step.Title})
	return nil
}

// checkFile reports whether path exists with a non-zero size. A cancelled
// context or an ErrHostAborted failure is returned as an error; other stat
// failures count as a missing file.
func (d *Driver) checkFile(ctx context.Context, path string) (bool, error) {
	size, exists, err := d.host.Stat(ctx, path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if errors.Is(err, ErrHostAborted) {
		return false, err
	}
	if err != nil {
		exists = false
	}
	d.host.Notify(ctx, Event{Kind: EventFileChecked, State: d.state, Path: path, Size: size, Exists: exists})
	return exists && size > 0, nil
}
