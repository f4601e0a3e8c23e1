// Package stages defines the dataset synthesis steps: the generation stages
// that expand one JSONL file into the next through the batch generator, the
// validation filter and the conversation formatter.
package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/generator"
)

// Expander turns one input row into zero or more instructions, reporting a
// skip reason for every expansion it could not build.
type Expander func(dataset.Row) ([]generator.Instruction, []domain.SkipReason)

// Summary reports what a stage run did.
type Summary struct {
	Stage        string
	Rows         int
	Instructions int
	Records      int
	Skips        domain.SkipReport
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("stage", s.Stage),
		slog.Int("rows", s.Rows),
		slog.Int("instructions", s.Instructions),
		slog.Int("records", s.Records),
		slog.Any("skipped", s.Skips),
	)
}

// Runner is a stage that can be run file to file.
type Runner interface {
	Name() string
	RunFile(ctx context.Context, gen generator.BatchGenerator, inPath, outPath string) (Summary, error)
}

// GenerationStage expands input rows into instructions, generates one record
// per instruction and collects them as Out.
type GenerationStage[Out any] struct {
	StageName    string
	Description  string
	Prompt       string
	SystemPrompt string
	Schema       generator.Schema
	Models       []domain.ModelID
	MaxTokens    int64
	Temperature  float64
	Expand       Expander
}

// Result is the output of Run. The dataset belongs to the caller.
type Result[Out any] struct {
	Dataset *dataset.Dataset[Out]
	Summary Summary
}

// Name returns the stage name.
func (s *GenerationStage[Out]) Name() string { return s.StageName }

// Instructions expands rows, recording every skip in report.
func (s *GenerationStage[Out]) Instructions(rows []dataset.Row, report *domain.SkipReport) []generator.Instruction {
	var out []generator.Instruction
	for _, row := range rows {
		instrs, skips := s.Expand(row)
		out = append(out, instrs...)
		for _, reason := range skips {
			report.Add(reason)
		}
	}
	return out
}

// Run generates records for rows. Records that do not decode into Out or
// fail its validation are dropped and counted. The returned Result is
// non-nil whenever generation ran, even if err is set.
func (s *GenerationStage[Out]) Run(ctx context.Context, gen generator.BatchGenerator, rows []dataset.Row) (*Result[Out], error) {
	res := &Result[Out]{
		Dataset: dataset.New[Out](s.StageName, s.Description).Reset(),
		Summary: Summary{Stage: s.StageName, Rows: len(rows)},
	}
	instrs := s.Instructions(rows, &res.Summary.Skips)
	res.Summary.Instructions = len(instrs)

	out, genErr := gen.Generate(ctx, generator.Batch{
		Name:         s.StageName,
		Prompt:       s.Prompt,
		SystemPrompt: s.SystemPrompt,
		Schema:       s.Schema,
		Instructions: instrs,
		Models:       s.Models,
		MaxTokens:    s.MaxTokens,
		Temperature:  s.Temperature,
	})
	if out == nil {
		if genErr == nil {
			genErr = ErrNoResult
		}
		return nil, fmt.Errorf("stage %s: %w", s.StageName, genErr)
	}
	res.Summary.Skips.Merge(out.Skips)

	for _, row := range out.Records {
		rec, err := dataset.Decode[Out](row)
		if err != nil {
			res.Summary.Skips.Add(domain.SkipUnparsablePayload)
			continue
		}
		if v, ok := any(&rec).(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				slog.Default().Debug("dropping invalid record", "stage", s.StageName, "error", err)
				res.Summary.Skips.Add(domain.SkipRejected)
				continue
			}
		}
		res.Dataset.Append(rec)
	}
	res.Summary.Records = res.Dataset.Len()

	if genErr != nil {
		return res, fmt.Errorf("stage %s: %w", s.StageName, genErr)
	}
	return res, nil
}

// RunFile reads inPath, runs the stage and writes the records to outPath.
// The output file is written even when generation partly or wholly failed,
// so the pipeline's emptiness check sees the real outcome.
func (s *GenerationStage[Out]) RunFile(ctx context.Context, gen generator.BatchGenerator, inPath, outPath string) (Summary, error) {
	rows, readSkips, err := dataset.ReadRows(inPath)
	if err != nil {
		return Summary{Stage: s.StageName}, fmt.Errorf("stage %s: %w", s.StageName, err)
	}

	res, runErr := s.Run(ctx, gen, rows)
	if res == nil {
		return Summary{Stage: s.StageName, Rows: len(rows), Skips: readSkips}, runErr
	}
	res.Summary.Skips.Merge(readSkips)

	if err := res.Dataset.ExportJSONL(outPath); err != nil {
		return res.Summary, errors.Join(runErr, err)
	}
	return res.Summary, runErr
}
