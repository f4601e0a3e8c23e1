package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-synth/internal/config"
	"github.com/ahrav/go-synth/internal/llm"
	"github.com/ahrav/go-synth/internal/worker"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath string

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	// completer overrides the model client, for tests.
	completer llm.Completer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return (&app{stdout: stdout, stderr: stderr}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "synth",
		Short:         "Generate synthetic information-extraction datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(a.stageCommands()...)
	root.AddCommand(a.pipelineCommand(), a.ragCommand())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(a.stderr)
	slog.SetDefault(a.logger)
	return nil
}

// client returns the model client, building it on first use.
func (a *app) client(cmd *cobra.Command) (llm.Completer, error) {
	if a.completer != nil {
		return a.completer, nil
	}
	c, err := worker.InitializeLLMClient(cmd.Context(), a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.completer = c
	return c, nil
}
