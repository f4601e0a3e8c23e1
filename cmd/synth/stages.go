package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-synth/internal/stages"
	"github.com/ahrav/go-synth/internal/worker"
)

var stageShort = map[string]string{
	stages.StageSubCategories: "Expand categories into sub-categories",
	stages.StageSubjects:      "Generate extraction subjects for each sub-category",
	stages.StageContexts:      "Write a source document for each subject",
	stages.StageExtractions:   "Extract the subject's information from each context",
	stages.StageValidations:   "Judge each extraction",
	stages.StageFilter:        "Keep only fully positive validations",
	stages.StageFormat:        "Convert filtered validations into chat conversations",
	stages.StageScore:         "Score extraction quality between 0 and 1",
}

func (a *app) stageCommands() []*cobra.Command {
	names := append(stages.GenerationNames(), stages.StageFilter, stages.StageFormat)
	cmds := make([]*cobra.Command, 0, len(names))
	for _, name := range names {
		cmds = append(cmds, &cobra.Command{
			Use:   name,
			Short: stageShort[name],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runStage(cmd, name)
			},
		})
	}
	return cmds
}

func (a *app) runStage(cmd *cobra.Command, name string) error {
	files, err := stages.FilesFor(a.cfg.DataDir, name)
	if err != nil {
		return err
	}

	exec := &stages.Executor{Out: a.stdout}
	if name != stages.StageFilter && name != stages.StageFormat {
		client, err := a.client(cmd)
		if err != nil {
			return err
		}
		if exec, err = worker.NewStageExecutor(a.cfg, client, a.stdout, a.logger); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	rep, err := exec.Run(cmd.Context(), name, files)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a.logger.Info("stage completed", "report", rep)
	if name != stages.StageFormat {
		fmt.Fprintf(a.stdout, "%s: wrote %d records to %s\n", name, rep.Outputs, rep.Output)
	}
	return nil
}
