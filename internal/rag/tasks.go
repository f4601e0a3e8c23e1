package rag

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/ahrav/go-synth/internal/domain"
)

//go:embed prompts/question.md
var questionPrompt string

//go:embed prompts/answer.md
var answerPrompt string

// Limits shared by both tasks.
const (
	MaxTokens = 800
	MaxTime   = 65 * time.Second
	MaxSteps  = 3
)

// DefaultModels is used when no models are configured for the tasks.
var DefaultModels = []domain.ModelID{domain.ModelGPT4oMini}

// Task is a single-step generative workflow whose raw results are wrapped
// into typed outputs.
type Task[Out any] interface {
	Workflow() (*Workflow, error)
	Callback(results []TaskResult) []Out
}

// Run builds the task's workflow, executes it on models and returns the
// wrapped outputs.
func Run[Out any](ctx context.Context, exec *Executor, task Task[Out], models []domain.ModelID) ([]Out, error) {
	wf, err := task.Workflow()
	if err != nil {
		return nil, err
	}
	results, err := exec.Execute(ctx, wf, models)
	if err != nil {
		return nil, err
	}
	return task.Callback(results), nil
}

func singleStep(inputs map[string]string, prompt string) (*Workflow, error) {
	return NewBuilder(inputs).
		SetMaxTokens(MaxTokens).
		SetMaxTime(MaxTime).
		SetMaxSteps(MaxSteps).
		GenerativeStep(prompt, OperatorGeneration, NewWrite("output")).
		Flow([]Edge{{Source: "0", Target: EndNode}}).
		SetReturnValue("output").
		Build()
}

// QuestionGeneration asks a persona-conditioned question about a context.
type QuestionGeneration struct {
	PersonaBio string
	Context    string
}

// Workflow implements Task.
func (q QuestionGeneration) Workflow() (*Workflow, error) {
	return singleStep(map[string]string{"persona_bio": q.PersonaBio, "context": q.Context}, questionPrompt)
}

// Callback implements Task.
func (q QuestionGeneration) Callback(results []TaskResult) []domain.QuestionOutput {
	out := make([]domain.QuestionOutput, 0, len(results))
	for _, r := range results {
		out = append(out, domain.QuestionOutput{
			Question: strings.TrimSpace(r.Result),
			Persona:  q.PersonaBio,
			Context:  q.Context,
		})
	}
	return out
}

// AnswerGeneration answers a question from a context. The persona is
// carried into the output but not shown to the model.
type AnswerGeneration struct {
	Persona  string
	Question string
	Context  string
}

// Workflow implements Task.
func (a AnswerGeneration) Workflow() (*Workflow, error) {
	return singleStep(map[string]string{"question": a.Question, "context": a.Context}, answerPrompt)
}

// Callback implements Task.
func (a AnswerGeneration) Callback(results []TaskResult) []domain.AnswerOutput {
	out := make([]domain.AnswerOutput, 0, len(results))
	for _, r := range results {
		out = append(out, domain.AnswerOutput{
			Persona:  a.Persona,
			Question: a.Question,
			Context:  a.Context,
			Answer:   strings.TrimSpace(r.Result),
		})
	}
	return out
}
