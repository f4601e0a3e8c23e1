package pipeline

import (
	"path/filepath"

	"github.com/ahrav/go-synth/internal/stages"
)

// Step is one entry of the stage table.
type Step struct {
	// Title is the human-readable name printed to the console.
	Title string `json:"title"`
	// Stage is the synth subcommand that runs the step.
	Stage  string `json:"stage"`
	Input  string `json:"input"`
	Output string `json:"output"`
	// Required steps always run. A step that is not required is skipped
	// when its output already exists and is non-empty.
	Required bool `json:"required"`
}

// Plan is the fixed sequence the driver executes.
type Plan struct {
	Seed     string `json:"seed"`
	Steps    []Step `json:"steps"`
	DataPrep Step   `json:"data_prep"`
}

// DefaultPlan returns the stage table rooted at dir. Every step is required.
func DefaultPlan(dir string) Plan {
	p := func(name string) string { return filepath.Join(dir, name) }
	step := func(title, stage, in, out string) Step {
		return Step{Title: title, Stage: stage, Input: p(in), Output: p(out), Required: true}
	}
	return Plan{
		Seed: p(stages.CategoriesFile),
		Steps: []Step{
			step("Sub-category Generation", stages.StageSubCategories, stages.CategoriesFile, stages.SubCategoriesFile),
			step("Subject Generation", stages.StageSubjects, stages.SubCategoriesFile, stages.SubjectsFile),
			step("Context Generation", stages.StageContexts, stages.SubjectsFile, stages.ContextsFile),
			step("Extraction Generation", stages.StageExtractions, stages.ContextsFile, stages.ExtractionsFile),
			step("Validation Generation", stages.StageValidations, stages.ExtractionsFile, stages.ValidationsFile),
			step("Filter Validations", stages.StageFilter, stages.ValidationsFile, stages.FilteredValidationsFile),
		},
		DataPrep: Step{
			Title:  "Data Conversion",
			Stage:  stages.StageFormat,
			Input:  p(stages.FilteredValidationsFile),
			Output: p(stages.ConversationsFile),
		},
	}
}
