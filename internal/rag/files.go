package rag

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
)

// Input and output files, relative to the data directory.
const (
	QuestionsInputFile = "rag_questions_in.jsonl"
	QuestionsFile      = "rag_questions.jsonl"
	AnswersInputFile   = "rag_answers_in.jsonl"
	AnswersFile        = "rag_answers.jsonl"
)

// DefaultConcurrency bounds the rows processed at once.
const DefaultConcurrency = 5

// FileSummary reports a task file run.
type FileSummary struct {
	Rows    int
	Outputs int
	Skips   domain.SkipReport
}

// Runner runs the RAG tasks over JSONL files.
type Runner struct {
	Executor    *Executor
	Models      []domain.ModelID
	Concurrency int
}

func (r *Runner) models() []domain.ModelID {
	if len(r.Models) == 0 {
		return DefaultModels
	}
	return r.Models
}

// QuestionsFile reads QuestionInput rows from inPath and writes every
// generated question to outPath.
func (r *Runner) QuestionsFile(ctx context.Context, inPath, outPath string) (FileSummary, error) {
	return runFile(ctx, r, inPath, outPath, func(in domain.QuestionInput) Task[domain.QuestionOutput] {
		return QuestionGeneration{PersonaBio: in.PersonaBio, Context: in.Context}
	})
}

// AnswersFile reads AnswerInput rows from inPath and writes every
// generated answer to outPath.
func (r *Runner) AnswersFile(ctx context.Context, inPath, outPath string) (FileSummary, error) {
	return runFile(ctx, r, inPath, outPath, func(in domain.AnswerInput) Task[domain.AnswerOutput] {
		return AnswerGeneration{Persona: in.Persona, Question: in.Question, Context: in.Context}
	})
}

type validatable interface {
	Validate() error
}

func runFile[In any, Out any, PIn interface {
	*In
	validatable
}](ctx context.Context, r *Runner, inPath, outPath string, newTask func(In) Task[Out]) (FileSummary, error) {
	rows, summarySkips, err := dataset.ReadRows(inPath)
	if err != nil {
		return FileSummary{}, err
	}
	summary := FileSummary{Rows: len(rows), Skips: summarySkips}

	var tasks []Task[Out]
	for _, row := range rows {
		in, err := dataset.Decode[In](row)
		if err != nil {
			summary.Skips.Add(domain.SkipMalformedRow)
			continue
		}
		if err := PIn(&in).Validate(); err != nil {
			summary.Skips.Add(domain.SkipBlankField)
			continue
		}
		tasks = append(tasks, newTask(in))
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	outputs := make([][]Out, len(tasks))
	failed := make([]bool, len(tasks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, task := range tasks {
		eg.Go(func() error {
			out, err := Run(egCtx, r.Executor, task, r.models())
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed[i] = true
				return nil
			}
			outputs[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return summary, fmt.Errorf("rag: %w", err)
	}

	var all []Out
	for i, out := range outputs {
		if failed[i] {
			summary.Skips.Add(domain.SkipGenerationFailed)
			continue
		}
		all = append(all, out...)
	}
	summary.Outputs = len(all)

	if err := dataset.WriteJSONL(outPath, all); err != nil {
		return summary, err
	}
	return summary, nil
}
