package activity

import (
	"context"
	"errors"
	"io/fs"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-synth/internal/generator"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
	"github.com/ahrav/go-synth/internal/stages"
)

// ErrActivityValidation is returned when activity input is incomplete.
var ErrActivityValidation = errors.New("activity input validation failed")

// Application error types attached to activity failures.
const (
	ErrTypeValidation   = "Validation"
	ErrTypeUnknownStage = "UnknownStage"
	ErrTypeInputMissing = "InputMissing"
	ErrTypeProvider     = "Provider"
	ErrTypeStageFailed  = "StageFailed"
)

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// classify converts a stage failure into a non-retryable Temporal
// application error tagged with its cause. Model calls already retry inside
// the stage, so a stage that failed is not run again.
func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, stages.ErrUnknownStage):
		return nonRetryable(ErrTypeUnknownStage, err, "unknown stage")
	case errors.Is(err, fs.ErrNotExist):
		return nonRetryable(ErrTypeInputMissing, err, "stage input unavailable")
	case errors.Is(err, generator.ErrAllFailed), llmerrors.IsRetryableError(err):
		msg := "model calls failed"
		if wfErr := llmerrors.ClassifyLLMError(err); wfErr != nil {
			msg = wfErr.Message
		}
		return nonRetryable(ErrTypeProvider, err, msg)
	default:
		return nonRetryable(ErrTypeStageFailed, err, "stage failed")
	}
}
