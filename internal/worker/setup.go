package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ahrav/go-synth/internal/config"
	"github.com/ahrav/go-synth/internal/generator"
	"github.com/ahrav/go-synth/internal/llm"
	"github.com/ahrav/go-synth/internal/rag"
	"github.com/ahrav/go-synth/internal/stages"
)

// InitializeLLMClient creates the model client described by cfg.
func InitializeLLMClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*llm.Client, error) {
	client, err := llm.NewClient(ctx, cfg.LLM, llm.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}

// NewStageExecutor builds the executor that runs every stage against
// client with the configured model overrides.
func NewStageExecutor(cfg *config.Config, client llm.Completer, out io.Writer, logger *slog.Logger) (*stages.Executor, error) {
	models, err := cfg.StageModels()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	gen := generator.New(client,
		generator.WithConcurrency(cfg.LLM.MaxConcurrency),
		generator.WithLogger(logger))
	return &stages.Executor{
		Catalog:   stages.NewCatalog(models),
		Generator: gen,
		Out:       out,
	}, nil
}

// NewRAGRunner builds the runner for the question and answer tasks.
func NewRAGRunner(cfg *config.Config, client llm.Completer) (*rag.Runner, error) {
	models, err := cfg.RAGModels()
	if err != nil {
		return nil, err
	}
	return &rag.Runner{
		Executor:    rag.NewExecutor(client),
		Models:      models,
		Concurrency: cfg.RAG.Concurrency,
	}, nil
}
