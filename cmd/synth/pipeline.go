package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-synth/internal/pipeline"
)

func (a *app) pipelineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Run every stage in order, halting at the first failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var args []string
			if a.configPath != "" {
				args = []string{"--config", a.configPath}
			}
			host := pipeline.NewProcessHost(args, a.stdout, a.stderr)
			host.Logger = a.logger

			driver := pipeline.NewDriver(pipeline.DefaultPlan(a.cfg.DataDir), host, a.cfg.PipelineOptions()...)
			if err := driver.Run(cmd.Context()); err != nil {
				a.logger.Debug("pipeline halted", "state", driver.State(), "history", driver.History())
				return err
			}
			return nil
		},
	}
}
