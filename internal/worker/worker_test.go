package worker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-synth/internal/config"
	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/rag"
	"github.com/ahrav/go-synth/internal/stages"
	"github.com/ahrav/go-synth/internal/workflow"
	"github.com/ahrav/go-synth/pkg/events"
)

type staticCompleter struct{ content string }

func (s staticCompleter) Complete(_ context.Context, in domain.CompletionInput) (*domain.CompletionOutput, error) {
	return &domain.CompletionOutput{Model: in.Model, Content: s.content}, nil
}

func TestNewStageExecutor_RunsFilterAndGeneration(t *testing.T) {
	cfg := config.Default()
	cfg.Stages = map[string][]string{stages.StageSubjects: {"openai:gpt-4o"}}

	var out bytes.Buffer
	exec, err := NewStageExecutor(cfg, staticCompleter{content: `{"subject": "Loans", "description": "Loan terms"}`}, &out, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	files, err := stages.FilesFor(dir, stages.StageSubjects)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(files.Input, []byte(
		`{"main_category": "Finance", "sub_category_1": "Banking", "description_1": "Banks"}`+"\n"), 0o644))

	rep, err := exec.Run(context.Background(), stages.StageSubjects, files)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Outputs)
}

func TestNewStageExecutor_BadModels(t *testing.T) {
	cfg := config.Default()
	cfg.Stages = map[string][]string{stages.StageSubjects: {"no-provider"}}
	_, err := NewStageExecutor(cfg, staticCompleter{}, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidModels)
}

func TestNewRAGRunner(t *testing.T) {
	r, err := NewRAGRunner(config.Default(), staticCompleter{content: "Why?"})
	require.NoError(t, err)
	assert.Equal(t, rag.DefaultModels, r.Models)

	dir := t.TempDir()
	in := filepath.Join(dir, rag.QuestionsInputFile)
	require.NoError(t, os.WriteFile(in, []byte(`{"persona_bio": "p", "context": "c"}`+"\n"), 0o644))
	sum, err := r.QuestionsFile(context.Background(), in, filepath.Join(dir, rag.QuestionsFile))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Outputs)
}

func TestRegisterAll(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	exec := &stages.Executor{}
	RegisterAll(env, exec, events.NewNoOpEventSink())

	env.ExecuteWorkflow(workflow.DatasetWorkflow, workflow.DatasetInput{DataDir: t.TempDir()})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError(), "an empty data dir has no seed file")
}
