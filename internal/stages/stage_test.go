package stages

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/generator"
)

// echoGenerator builds one record per instruction by filling every schema
// field from the instruction or from fill.
type echoGenerator struct {
	mu      sync.Mutex
	batches []generator.Batch
	fill    map[string]any
	err     error
}

func (g *echoGenerator) Generate(_ context.Context, b generator.Batch) (*generator.Result, error) {
	g.mu.Lock()
	g.batches = append(g.batches, b)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}

	res := &generator.Result{}
	for _, instr := range b.Instructions {
		obj := make(map[string]any, len(g.fill))
		for k, v := range g.fill {
			obj[k] = v
		}
		rec, err := b.Schema.Conform(obj, instr)
		if err != nil {
			res.Skips.Add(domain.SkipGenerationFailed)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (g *echoGenerator) lastBatch(t *testing.T) generator.Batch {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.batches)
	return g.batches[len(g.batches)-1]
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestSubjects_ExpandsThreePairsPerCategory(t *testing.T) {
	gen := &echoGenerator{fill: map[string]any{
		"sub_category_1": "Invoices", "description_1": "Invoice data",
		"sub_category_2": "Payroll", "description_2": "Salary data",
		"sub_category_3": "Taxes", "description_3": "Tax filings",
	}}

	subCats, err := SubCategories(nil).Run(context.Background(), gen, []dataset.Row{{"main_category": "Finance"}})
	require.NoError(t, err)
	require.Equal(t, 1, subCats.Dataset.Len())
	assert.Equal(t, "Finance", subCats.Dataset.Records()[0].MainCategory)
	assert.Equal(t, []generator.Instruction{{"category": "Finance", "main_category": "Finance"}}, gen.lastBatch(t).Instructions)

	rows := recordsAsRows(t, subCats.Dataset.Records())

	gen.fill = map[string]any{"subject": "generated"}
	subjects, err := Subjects(nil).Run(context.Background(), gen, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, subjects.Summary.Instructions)
	assert.Equal(t, 3, subjects.Dataset.Len())

	want := []generator.Instruction{
		{"main_category": "Finance", "sub_category": "Invoices", "description": "Invoice data"},
		{"main_category": "Finance", "sub_category": "Payroll", "description": "Salary data"},
		{"main_category": "Finance", "sub_category": "Taxes", "description": "Tax filings"},
	}
	if diff := cmp.Diff(want, gen.lastBatch(t).Instructions); diff != "" {
		t.Errorf("subject instructions mismatch (-want +got):\n%s", diff)
	}
}

func recordsAsRows[T any](t *testing.T, recs []T) []dataset.Row {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, dataset.WriteJSONL(path, recs))
	rows, _, err := dataset.ReadRows(path)
	require.NoError(t, err)
	return rows
}

func TestExpandSubCategory_PartialPairs(t *testing.T) {
	row := dataset.Row{
		"main_category":  "Health",
		"sub_category_1": "Clinics", "description_1": "Clinic records",
		"sub_category_2": "  ", "description_2": "blank name",
		"description_3": "no name",
	}
	instrs, skips := expandSubCategory(row)
	require.Len(t, instrs, 1)
	assert.Equal(t, "Clinics", instrs[0]["sub_category"])
	assert.Equal(t, []domain.SkipReason{domain.SkipBlankField, domain.SkipMissingField}, skips)

	instrs, skips = expandSubCategory(dataset.Row{"main_category": " ", "sub_category_1": "x", "description_1": "y"})
	assert.Empty(t, instrs)
	assert.Equal(t, []domain.SkipReason{domain.SkipBlankField}, skips)
}

func TestGenerationStage_SkipsAreCounted(t *testing.T) {
	gen := &echoGenerator{fill: map[string]any{"context": "A long document"}}
	rows := []dataset.Row{
		{"subject": "a", "description": "da"},
		{"subject": "b", "description": "db"},
		{"subject": "c"},
		{"subject": "", "description": "dd"},
		{"subject": "e", "description": "de"},
	}

	res, err := Contexts(nil).Run(context.Background(), gen, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.Instructions)
	assert.Equal(t, 3, res.Summary.Records)
	assert.Equal(t, 1, res.Summary.Skips.Count(domain.SkipMissingField))
	assert.Equal(t, 1, res.Summary.Skips.Count(domain.SkipBlankField))

	got := res.Dataset.Records()
	assert.Equal(t, domain.Context{Subject: "a", Description: "da", Context: "A long document"}, got[0])
	assert.Equal(t, DefaultModels, gen.lastBatch(t).Models)
}

func TestValidations_AllowsBlankValuesAndPrefersGPT4o(t *testing.T) {
	gen := &echoGenerator{fill: map[string]any{
		"validation_result": map[string]any{"is_accurate": true},
	}}
	rows := []dataset.Row{
		{"subject": "s", "description": "", "context": "c", "extracted_info": ""},
		{"subject": "s", "description": "d", "context": "c"},
	}
	res, err := Validations(nil).Run(context.Background(), gen, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dataset.Len())
	assert.Equal(t, 1, res.Summary.Skips.Count(domain.SkipMissingField))
	assert.JSONEq(t, `{"is_accurate":true}`, res.Dataset.Records()[0].ValidationResult)
	assert.Equal(t, domain.ModelGPT4o, gen.lastBatch(t).Models[0])
}

func TestQuality_Expansion(t *testing.T) {
	tests := []struct {
		name   string
		row    dataset.Row
		want   int
		reason domain.SkipReason
	}{
		{"complete", dataset.Row{"subject": "s", "context": "c", "extracted_info": "x"}, 1, ""},
		{"empty extracted info is forwarded", dataset.Row{"subject": "s", "context": "c", "extracted_info": ""}, 1, ""},
		{"empty subject", dataset.Row{"subject": "", "context": "c", "extracted_info": "x"}, 0, domain.SkipBlankField},
		{"missing extracted info", dataset.Row{"subject": "s", "context": "c"}, 0, domain.SkipMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instrs, skips := expandQuality(tt.row)
			assert.Len(t, instrs, tt.want)
			if tt.reason != "" {
				assert.Equal(t, []domain.SkipReason{tt.reason}, skips)
			}
		})
	}
}

func TestQuality_Run(t *testing.T) {
	gen := &echoGenerator{fill: map[string]any{"quality_score": 0.9}}
	res, err := Quality(nil).Run(context.Background(), gen,
		[]dataset.Row{{"subject": "s", "context": "c", "extracted_info": "{}"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Dataset.Len())
	assert.InDelta(t, 0.9, res.Dataset.Records()[0].QualityScore, 1e-9)
}

func TestGenerationStage_RunFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, CategoriesFile)
	out := filepath.Join(dir, SubCategoriesFile)
	writeLines(t, in, `{"main_category": "Finance"}`, `not json`, `{"main_category": "Legal"}`)

	gen := &echoGenerator{fill: map[string]any{
		"sub_category_1": "a", "description_1": "b",
		"sub_category_2": "c", "description_2": "d",
		"sub_category_3": "e", "description_3": "f",
	}}
	summary, err := SubCategories(nil).RunFile(context.Background(), gen, in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 1, summary.Skips.Count(domain.SkipMalformedRow))

	rows, _, err := dataset.ReadRows(out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Legal", rows[1]["main_category"])
}

func TestGenerationStage_RunFileErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing input", func(t *testing.T) {
		_, err := Contexts(nil).RunFile(context.Background(), &echoGenerator{}, filepath.Join(dir, "nope.jsonl"), filepath.Join(dir, "out.jsonl"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("generator error", func(t *testing.T) {
		in := filepath.Join(dir, SubjectsFile)
		writeLines(t, in, `{"subject": "s", "description": "d"}`)
		boom := errors.New("backend down")
		_, err := Contexts(nil).RunFile(context.Background(), &echoGenerator{err: boom}, in, filepath.Join(dir, ContextsFile))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("generator returns nothing", func(t *testing.T) {
		in := filepath.Join(dir, SubjectsFile)
		writeLines(t, in, `{"subject": "s", "description": "d"}`)
		_, err := Contexts(nil).RunFile(context.Background(), nilGenerator{}, in, filepath.Join(dir, ContextsFile))
		require.ErrorIs(t, err, ErrNoResult)
		assert.Equal(t, "stage contexts: generator returned no result", err.Error())
	})
}

type nilGenerator struct{}

func (nilGenerator) Generate(context.Context, generator.Batch) (*generator.Result, error) {
	return nil, nil
}

func TestCatalog(t *testing.T) {
	custom := []domain.ModelID{"anthropic:claude-3-5-haiku-latest"}
	c := NewCatalog(map[string][]domain.ModelID{StageContexts: custom})

	r, err := c.Generation(StageContexts)
	require.NoError(t, err)
	assert.Equal(t, custom, r.(*GenerationStage[domain.Context]).Models)

	r, err = c.Generation(StageValidations)
	require.NoError(t, err)
	assert.Equal(t, ValidationModels, r.(*GenerationStage[domain.Validation]).Models)

	_, err = c.Generation(StageFilter)
	assert.ErrorIs(t, err, ErrUnknownStage)

	assert.Len(t, GenerationNames(), 6)

	files, err := FilesFor("datasets", StageFormat)
	require.NoError(t, err)
	assert.Equal(t, Files{
		Input:  filepath.Join("datasets", FilteredValidationsFile),
		Output: filepath.Join("datasets", ConversationsFile),
	}, files)
}

func TestExecutor_Run(t *testing.T) {
	dir := t.TempDir()
	exec := &Executor{Catalog: NewCatalog(nil), Generator: &echoGenerator{fill: map[string]any{
		"sub_category_1": "Banking", "description_1": "d1",
		"sub_category_2": "Tax", "description_2": "d2",
		"sub_category_3": "Insurance", "description_3": "d3",
	}}}

	t.Run("generation stage", func(t *testing.T) {
		files, err := FilesFor(dir, StageSubCategories)
		require.NoError(t, err)
		writeLines(t, files.Input, `{"main_category": "Finance"}`, `{"other": 1}`)

		rep, err := exec.Run(context.Background(), StageSubCategories, files)
		require.NoError(t, err)
		assert.Equal(t, 2, rep.Rows)
		assert.Equal(t, 1, rep.Outputs)
		assert.Equal(t, 1, rep.Skips[domain.SkipMissingField])
	})

	t.Run("format stage", func(t *testing.T) {
		files, err := FilesFor(dir, StageFormat)
		require.NoError(t, err)
		writeLines(t, files.Input, `{"subject": "s", "description": "d", "context": "c", "extracted_info": "e"}`)

		var out bytes.Buffer
		exec := &Executor{Out: &out}
		rep, err := exec.Run(context.Background(), StageFormat, files)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Outputs)
		assert.Contains(t, out.String(), "Successfully processed and saved 1 conversations")
	})

	t.Run("generation without generator", func(t *testing.T) {
		_, err := (&Executor{}).Run(context.Background(), StageSubjects, Files{})
		assert.Error(t, err)
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := exec.Run(context.Background(), "summaries", Files{})
		assert.ErrorIs(t, err, ErrUnknownStage)
	})
}
