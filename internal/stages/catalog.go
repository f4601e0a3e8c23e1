package stages

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ahrav/go-synth/internal/domain"
)

// Dataset file names, relative to the data directory.
const (
	CategoriesFile          = "categories.jsonl"
	SubCategoriesFile       = "sub_categories.jsonl"
	SubjectsFile            = "subjects.jsonl"
	ContextsFile            = "contexts.jsonl"
	ExtractionsFile         = "extractions.jsonl"
	ValidationsFile         = "validations.jsonl"
	FilteredValidationsFile = "filtered_validations.jsonl"
	ConversationsFile       = "conversation_format_dataset.json"
	QualityFile             = "validated_extractions_0.jsonl"
)

// Files is the input and output file of a stage.
type Files struct {
	Input  string
	Output string
}

var stageFiles = map[string]Files{
	StageSubCategories: {CategoriesFile, SubCategoriesFile},
	StageSubjects:      {SubCategoriesFile, SubjectsFile},
	StageContexts:      {SubjectsFile, ContextsFile},
	StageExtractions:   {ContextsFile, ExtractionsFile},
	StageValidations:   {ExtractionsFile, ValidationsFile},
	StageFilter:        {ValidationsFile, FilteredValidationsFile},
	StageFormat:        {FilteredValidationsFile, ConversationsFile},
	StageScore:         {ExtractionsFile, QualityFile},
}

// FilesFor returns the stage's files joined onto dir.
func FilesFor(dir, stage string) (Files, error) {
	f, ok := stageFiles[stage]
	if !ok {
		return Files{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return Files{Input: filepath.Join(dir, f.Input), Output: filepath.Join(dir, f.Output)}, nil
}

// Catalog builds generation stages with per-stage model overrides.
type Catalog struct {
	models map[string][]domain.ModelID
}

// NewCatalog creates a catalog. A stage missing from models uses its
// default candidate list.
func NewCatalog(models map[string][]domain.ModelID) *Catalog {
	return &Catalog{models: models}
}

// Generation returns the generation stage called name.
func (c *Catalog) Generation(name string) (Runner, error) {
	m := c.models[name]
	switch name {
	case StageSubCategories:
		return SubCategories(m), nil
	case StageSubjects:
		return Subjects(m), nil
	case StageContexts:
		return Contexts(m), nil
	case StageExtractions:
		return Extractions(m), nil
	case StageValidations:
		return Validations(m), nil
	case StageScore:
		return Quality(m), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
}

// GenerationNames lists the generation stages in sorted order.
func GenerationNames() []string {
	names := []string{StageSubCategories, StageSubjects, StageContexts, StageExtractions, StageValidations, StageScore}
	sort.Strings(names)
	return names
}
