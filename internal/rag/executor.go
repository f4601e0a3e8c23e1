package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm"
)

// Execution errors.
var (
	ErrMaxStepsExceeded = errors.New("workflow exceeded its step limit")
	ErrNoEdge           = errors.New("step has no outgoing edge")
	ErrAllModelsFailed  = errors.New("workflow failed on every model")
)

// TaskResult is the return value of one workflow run on one model.
type TaskResult struct {
	Model  domain.ModelID
	Result string
	Usage  domain.Usage
}

// Executor runs workflows against an llm.Completer.
type Executor struct {
	client llm.Completer
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(client llm.Completer) *Executor {
	return &Executor{client: client, logger: slog.Default().With("component", "rag")}
}

// Execute runs wf once per model and returns one result per model that
// completed. Models that fail are logged and left out; an error is returned
// only when no model completed or ctx ended.
func (e *Executor) Execute(ctx context.Context, wf *Workflow, models []domain.ModelID) ([]TaskResult, error) {
	results := make([]TaskResult, 0, len(models))
	var errs []error
	for _, m := range models {
		res, err := e.run(ctx, wf, m)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logger.WarnContext(ctx, "workflow run failed", "model", m, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllModelsFailed, errors.Join(errs...))
	}
	return results, nil
}

// run walks the edge graph from the first step to EndNode within the
// workflow's time and step limits.
func (e *Executor) run(ctx context.Context, wf *Workflow, model domain.ModelID) (TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, wf.MaxTime)
	defer cancel()

	memory := maps.Clone(wf.Memory)
	res := TaskResult{Model: model}

	current := wf.Steps[0].ID
	for steps := 0; current != EndNode; steps++ {
		if steps >= wf.MaxSteps {
			return res, ErrMaxStepsExceeded
		}
		step, ok := wf.Step(current)
		if !ok {
			return res, fmt.Errorf("%w: %q", ErrUnknownEdgeNode, current)
		}

		prompt, err := domain.RenderTemplate(step.Prompt, memory)
		if err != nil {
			return res, fmt.Errorf("step %s: %w", step.ID, err)
		}
		out, err := e.client.Complete(ctx, domain.CompletionInput{
			Model:     model,
			Prompt:    prompt,
			MaxTokens: wf.MaxTokens,
		})
		if err != nil {
			return res, fmt.Errorf("step %s: %w", step.ID, err)
		}
		for _, w := range step.Outputs {
			memory[w.Key] = out.Content
		}
		res.Usage.PromptTokens += out.Usage.PromptTokens
		res.Usage.CompletionTokens += out.Usage.CompletionTokens
		res.Usage.TotalTokens += out.Usage.TotalTokens

		next, ok := wf.Next(current)
		if !ok {
			return res, fmt.Errorf("%w: %s", ErrNoEdge, current)
		}
		current = next
	}

	res.Result = memory[wf.ReturnValue]
	return res, nil
}
