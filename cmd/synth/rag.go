package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-synth/internal/rag"
	"github.com/ahrav/go-synth/internal/worker"
)

func (a *app) ragCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Generate questions and answers for RAG evaluation",
	}
	cmd.AddCommand(
		a.ragTask("question", "Ask a persona-conditioned question about each context",
			rag.QuestionsInputFile, rag.QuestionsFile, (*rag.Runner).QuestionsFile),
		a.ragTask("answer", "Answer each question from its context",
			rag.AnswersInputFile, rag.AnswersFile, (*rag.Runner).AnswersFile),
	)
	return cmd
}

type ragFileFunc func(r *rag.Runner, ctx context.Context, in, out string) (rag.FileSummary, error)

func (a *app) ragTask(use, short, inFile, outFile string, run ragFileFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(cmd)
			if err != nil {
				return err
			}
			runner, err := worker.NewRAGRunner(a.cfg, client)
			if err != nil {
				return fmt.Errorf("rag %s: %w", use, err)
			}

			in := filepath.Join(a.cfg.DataDir, inFile)
			out := filepath.Join(a.cfg.DataDir, outFile)
			sum, err := run(runner, cmd.Context(), in, out)
			if err != nil {
				return fmt.Errorf("rag %s: %w", use, err)
			}
			a.logger.Info("rag task completed", "task", use, "rows", sum.Rows, "outputs", sum.Outputs, "skips", sum.Skips)
			fmt.Fprintf(a.stdout, "rag %s: wrote %d records to %s\n", use, sum.Outputs, out)
			return nil
		},
	}
}
