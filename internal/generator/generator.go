// Package generator turns a batch of template-filled instructions into
// schema-shaped records by calling a list of candidate models in order
// until one produces a conforming JSON object.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
)

// DefaultConcurrency bounds in-flight instructions per batch.
const DefaultConcurrency = 5

// DefaultMaxTokens is used when a batch does not set MaxTokens.
const DefaultMaxTokens = 2048

// Batch errors.
var (
	ErrEmptyPrompt = errors.New("batch prompt template is empty")
	ErrAllFailed   = errors.New("every instruction in the batch failed")
)

// Instruction holds the placeholder values for one prompt.
type Instruction map[string]string

// Missing returns the names in vars that have no value in i.
func (i Instruction) Missing(vars []string) []string {
	var out []string
	for _, name := range vars {
		if _, ok := i[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Batch is one stage's worth of generation work.
type Batch struct {
	// Name labels log lines.
	Name string

	// Prompt is the template with {{name}} placeholders.
	Prompt       string
	SystemPrompt string
	Schema       Schema
	Instructions []Instruction

	// Models are tried in order for each instruction; the first conforming
	// response wins.
	Models []domain.ModelID

	MaxTokens   int64
	Temperature float64
}

// Validate checks the batch before any call is made.
func (b *Batch) Validate() error {
	if b.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(b.Models) == 0 {
		return llmerrors.ErrNoCandidates
	}
	for _, m := range b.Models {
		if _, _, err := m.Split(); err != nil {
			return err
		}
	}
	return b.Schema.Validate()
}

// Failure records an instruction for which every model failed.
type Failure struct {
	Index int
	Err   error
}

// Result holds the records in instruction order, omitting failed ones.
type Result struct {
	Records  []dataset.Row
	Failures []Failure
	Skips    domain.SkipReport
}

// BatchGenerator produces records for a batch.
type BatchGenerator interface {
	Generate(ctx context.Context, b Batch) (*Result, error)
}

// Generator is the BatchGenerator backed by an llm.Completer.
type Generator struct {
	client      llm.Completer
	concurrency int
	logger      *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithConcurrency sets the number of instructions processed at once.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New creates a Generator.
func New(client llm.Completer, opts ...Option) *Generator {
	g := &Generator{
		client:      client,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "generator")
	return g
}

// Generate runs every instruction of b. A failed instruction is dropped and
// counted as generation_failed; the batch fails only when ctx ends or when
// every instruction failed.
func (g *Generator) Generate(ctx context.Context, b Batch) (*Result, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch %q: %w", b.Name, err)
	}

	type outcome struct {
		rec dataset.Row
		err error
	}
	outcomes := make([]outcome, len(b.Instructions))

	vars := domain.Placeholders(b.Prompt)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, instr := range b.Instructions {
		eg.Go(func() error {
			rec, err := g.generateOne(egCtx, &b, vars, instr)
			if err != nil && egCtx.Err() != nil {
				return egCtx.Err()
			}
			outcomes[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("batch %q: %w", b.Name, err)
	}

	res := &Result{Records: make([]dataset.Row, 0, len(outcomes))}
	for i, o := range outcomes {
		if o.err != nil {
			res.Failures = append(res.Failures, Failure{Index: i, Err: o.err})
			res.Skips.Add(domain.SkipGenerationFailed)
			continue
		}
		res.Records = append(res.Records, o.rec)
	}

	g.logger.InfoContext(ctx, "batch complete",
		"batch", b.Name,
		"instructions", len(b.Instructions),
		"records", len(res.Records),
		"skipped", res.Skips)

	if len(b.Instructions) > 0 && len(res.Records) == 0 {
		return res, fmt.Errorf("batch %q: %w: %w", b.Name, ErrAllFailed, res.Failures[0].Err)
	}
	return res, nil
}

func (g *Generator) generateOne(ctx context.Context, b *Batch, vars []string, instr Instruction) (dataset.Row, error) {
	if missing := instr.Missing(vars); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingVariable, strings.Join(missing, ", "))
	}
	spec, err := domain.NewPromptSpec(b.Prompt, instr)
	if err != nil {
		return nil, err
	}
	prompt := spec.Rendered + "\n\n" + b.Schema.Instructions()

	maxTokens := b.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	var errs []error
	for _, model := range b.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := g.client.Complete(ctx, domain.CompletionInput{
			Model:        model,
			Prompt:       prompt,
			SystemPrompt: b.SystemPrompt,
			MaxTokens:    maxTokens,
			Temperature:  b.Temperature,
			Structured:   true,
		})
		if err == nil {
			var rec dataset.Row
			if rec, err = g.conform(model, out.Content, b.Schema, instr); err == nil {
				return rec, nil
			}
		}

		g.logger.WarnContext(ctx, "candidate model failed",
			"batch", b.Name,
			"model", model,
			"prompt_hash", spec.Hash[:12],
			"error", err)
		errs = append(errs, fmt.Errorf("%s: %w", model, err))
	}
	return nil, errors.Join(errs...)
}

func (g *Generator) conform(model domain.ModelID, content string, schema Schema, instr Instruction) (dataset.Row, error) {
	obj, err := ParseObject(content)
	if err != nil {
		return nil, llmerrors.NewOutputError(model.String(), err.Error(), content)
	}
	rec, err := schema.Conform(obj, instr)
	if err != nil {
		return nil, llmerrors.NewOutputError(model.String(), err.Error(), content)
	}
	return rec, nil
}
