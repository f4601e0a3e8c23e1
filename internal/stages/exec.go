package stages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/generator"
)

// Report is the outcome of one stage run in a form that survives
// serialization.
type Report struct {
	Stage   string                    `json:"stage"`
	Input   string                    `json:"input"`
	Output  string                    `json:"output"`
	Rows    int                       `json:"rows"`
	Outputs int                       `json:"outputs"`
	Skips   map[domain.SkipReason]int `json:"skips,omitempty"`
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("stage", r.Stage),
		slog.Int("rows", r.Rows),
		slog.Int("outputs", r.Outputs),
	}
	for _, reason := range slices.Sorted(maps.Keys(r.Skips)) {
		attrs = append(attrs, slog.Int("skipped_"+string(reason), r.Skips[reason]))
	}
	return slog.GroupValue(attrs...)
}

// Executor runs any stage by name.
type Executor struct {
	Catalog   *Catalog
	Generator generator.BatchGenerator
	// Out receives the formatter's console lines.
	Out io.Writer
}

// Run executes stage over files.
func (e *Executor) Run(ctx context.Context, stage string, files Files) (Report, error) {
	rep := Report{Stage: stage, Input: files.Input, Output: files.Output}

	switch stage {
	case StageFilter:
		sum, err := FilterFile(files.Input, files.Output)
		rep.Rows, rep.Outputs, rep.Skips = sum.Lines, sum.Kept, sum.Skips.Counts()
		return rep, err
	case StageFormat:
		out := e.Out
		if out == nil {
			out = io.Discard
		}
		sum, err := FormatFile(files.Input, files.Output, out)
		rep.Rows, rep.Outputs, rep.Skips = sum.Lines, sum.Conversations, sum.Skips.Counts()
		return rep, err
	}

	if e.Catalog == nil || e.Generator == nil {
		return rep, fmt.Errorf("%s: generation stages need a catalog and generator", stage)
	}
	runner, err := e.Catalog.Generation(stage)
	if err != nil {
		return rep, err
	}
	sum, err := runner.RunFile(ctx, e.Generator, files.Input, files.Output)
	rep.Rows, rep.Outputs, rep.Skips = sum.Rows, sum.Records, sum.Skips.Counts()
	return rep, err
}
