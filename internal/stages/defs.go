package stages

import (
	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/generator"
)

// Stage names double as CLI subcommands.
const (
	StageSubCategories = "subcategories"
	StageSubjects      = "subjects"
	StageContexts      = "contexts"
	StageExtractions   = "extractions"
	StageValidations   = "validations"
	StageFilter        = "filter"
	StageFormat        = "format"
	StageScore         = "score"
)

// DefaultModels is the candidate order used by every generation stage
// except validation.
var DefaultModels = []domain.ModelID{domain.ModelGPT4oMini, domain.ModelGPT4o, domain.ModelSonnet35Router}

// ValidationModels puts the larger model first for judging extractions.
var ValidationModels = []domain.ModelID{domain.ModelGPT4o, domain.ModelGPT4oMini, domain.ModelSonnet35Router}

const subCategoryPrompt = `
For the following main category:
{{category}}

Generate 3 specific sub-categories. Each sub-category should:
1. Be a specific subset of the main category
2. Have clear, defined boundaries
3. Be suitable for information extraction tasks
4. Have practical business applications

Return the response as a JSON with the following format:
Sub-Category_1: [name]
Description_1: [detailed description]

Sub-Category_2: [name]
Description_2: [detailed description]

Sub-Category_3: [name]
Description_3: [detailed description]

Generate exactly a unique sub-category, without any numbering or prefixes.
`

const subjectPrompt = `
For the following sub-category of {{main_category}}:
{{sub_category}}

Description: {{description}}

Generate a specific subject for information extraction. The subject should:
1. Be focused and specific
2. Clearly define what information needs to be extracted
3. Be practical and business-relevant
4. Include clear extraction guidelines

Format your response EXACTLY as:
Subject: [specific subject name]
Description: [description of the information extraction task, the expected values to be extracted]
`

const contextPrompt = `

Your task is to generate a realistic context that will be used for information extraction tasks.
Generate a realistic context that contains information related to:
Subject: {{subject}}
Extraction Task: {{description}}

Requirements:
1. Make it realistic and detailed
2. Do not include ALL information needed for the extraction task, but include most of it
3. Add some irrelevant information to make it more natural
4. Length should be 500-1000 words
5. Format appropriately for the type of content
6. Shape the context as a story, a conversation between two people, a financial report, a blog post, etc. based on the subject and extraction task
`

const extractionPrompt = `
Based on the following subject and task, extract the relevant information from the document and format it as a JSON object.

Subject: {{subject}}
Extraction Task: {{description}}

Document:
{{context}}

Format your response EXACTLY as:
Extracted_data: [data_label_1: data_value_1, data_label_2: data_value_2, ...]
If the information is not present in the document, write "null" for the corresponding data_label.
`

const validationPrompt = `
Validate the following extraction result:

Subject: {{subject}}
Description: {{description}}
Context: {{context}}
Extracted Information: {{extracted_info}}

Your task is to validate the extraction by:
1. Checking if the extracted information matches the requirements in the description
2. Verifying if all required information was extracted from the context
3. Validating the JSON format and structure
4. Identifying any missing or incorrect information

Provide your validation analysis in a JSON format with the following structure:
{
    "is_complete": true/false,
    "is_accurate": true/false,
    "format_valid": true/false,
    "missing_fields": [],
    "incorrect_fields": [],
}
`

const qualityPrompt = `
You are an expert at evaluating information extraction results. Evaluate the following extraction:

Subject: {{subject}}
Context: {{context}}
Extracted Information: {{extracted_info}}

Provide:
1. A single quality score (0-1) based on:
   - JSON formatting
   - Data completeness
   - Extraction accuracy
   - Relevance to subject
   
Keep your response focused and concise.
`

func str(name, desc string) generator.Field {
	return generator.Field{Name: name, Type: generator.String, Description: desc}
}

func orDefault(models, def []domain.ModelID) []domain.ModelID {
	if len(models) == 0 {
		return def
	}
	return models
}

// SubCategories expands each category into three sub-categories.
func SubCategories(models []domain.ModelID) *GenerationStage[domain.SubCategory] {
	return &GenerationStage[domain.SubCategory]{
		StageName:   StageSubCategories,
		Description: "A dataset of sub-categories for information extraction",
		Prompt:      subCategoryPrompt,
		Schema: generator.Schema{
			str("main_category", "Main category name"),
			str("sub_category_1", "Sub-category name"),
			str("description_1", "Description of the sub-category"),
			str("sub_category_2", "Sub-category name"),
			str("description_2", "Description of the sub-category"),
			str("sub_category_3", "Sub-category name"),
			str("description_3", "Description of the sub-category"),
		},
		Models: orDefault(models, DefaultModels),
		Expand: expandCategory,
	}
}

func expandCategory(row dataset.Row) ([]generator.Instruction, []domain.SkipReason) {
	vals, reason := row.RequireNonBlank("main_category")
	if reason != "" {
		return nil, []domain.SkipReason{reason}
	}
	return []generator.Instruction{{
		"category":      vals["main_category"],
		"main_category": vals["main_category"],
	}}, nil
}

// Subjects produces one subject per (category, sub-category) pair.
func Subjects(models []domain.ModelID) *GenerationStage[domain.Subject] {
	return &GenerationStage[domain.Subject]{
		StageName:   StageSubjects,
		Description: "A dataset of subjects for information extraction",
		Prompt:      subjectPrompt,
		Schema: generator.Schema{
			str("subject", "Subject name for the extraction task"),
			str("description", "Description of what to extract"),
		},
		Models: orDefault(models, DefaultModels),
		Expand: expandSubCategory,
	}
}

// expandSubCategory emits up to three instructions; each numbered pair is
// checked on its own.
func expandSubCategory(row dataset.Row) ([]generator.Instruction, []domain.SkipReason) {
	main, reason := row.RequireNonBlank("main_category")
	if reason != "" {
		return nil, []domain.SkipReason{reason}
	}

	var (
		out   []generator.Instruction
		skips []domain.SkipReason
	)
	for _, i := range []string{"1", "2", "3"} {
		subKey, descKey := "sub_category_"+i, "description_"+i
		vals, reason := row.RequireNonBlank(subKey, descKey)
		if reason != "" {
			skips = append(skips, reason)
			continue
		}
		out = append(out, generator.Instruction{
			"main_category": main["main_category"],
			"sub_category":  vals[subKey],
			"description":   vals[descKey],
		})
	}
	return out, skips
}

// Contexts writes a realistic document for each subject.
func Contexts(models []domain.ModelID) *GenerationStage[domain.Context] {
	return &GenerationStage[domain.Context]{
		StageName:   StageContexts,
		Description: "A dataset of realistic contexts for information extraction",
		Prompt:      contextPrompt,
		Schema: generator.Schema{
			str("subject", "Original subject name"),
			str("description", "Original extraction task description"),
			str("context", "Generated context containing information"),
		},
		Models:    orDefault(models, DefaultModels),
		MaxTokens: 4096,
		Expand:    requireNonBlank("subject", "description"),
	}
}

// Extractions extracts structured information from each context.
func Extractions(models []domain.ModelID) *GenerationStage[domain.Extraction] {
	return &GenerationStage[domain.Extraction]{
		StageName:   StageExtractions,
		Description: "A dataset of extracted structured information from documents",
		Prompt:      extractionPrompt,
		Schema: generator.Schema{
			str("subject", "Original subject name"),
			str("description", "Original extraction task description"),
			str("context", "Context to extract from"),
			str("extracted_info", "Extracted information in JSON format"),
		},
		Models:    orDefault(models, DefaultModels),
		MaxTokens: 4096,
		Expand:    requireNonBlank("subject", "description", "context"),
	}
}

// Validations judges each extraction.
func Validations(models []domain.ModelID) *GenerationStage[domain.Validation] {
	return &GenerationStage[domain.Validation]{
		StageName:   StageValidations,
		Description: "Validation results for extracted information",
		Prompt:      validationPrompt,
		Schema: generator.Schema{
			str("subject", "Original subject name"),
			str("description", "Original extraction task description"),
			str("context", "Original context"),
			str("extracted_info", "Original extracted information"),
			str("validation_result", "Validation analysis and feedback"),
		},
		Models:    orDefault(models, ValidationModels),
		MaxTokens: 4096,
		Expand:    requirePresent("subject", "description", "context", "extracted_info"),
	}
}

// Quality assigns a 0..1 quality score to each extraction. It is not part
// of the pipeline.
func Quality(models []domain.ModelID) *GenerationStage[domain.QualityScore] {
	return &GenerationStage[domain.QualityScore]{
		StageName:   StageScore,
		Description: "Validated information extraction results",
		Prompt:      qualityPrompt,
		Schema: generator.Schema{
			str("subject", "Original subject"),
			str("context", "Original context"),
			str("extracted_info", "Extracted information"),
			{Name: "quality_score", Type: generator.Number, Description: "Overall quality score (0-1)", Bounded: true, Min: 0, Max: 1},
		},
		Models:    orDefault(models, DefaultModels),
		MaxTokens: 4096,
		Expand:    expandQuality,
	}
}

func expandQuality(row dataset.Row) ([]generator.Instruction, []domain.SkipReason) {
	for _, k := range []string{"subject", "context", "extracted_info"} {
		if !row.Has(k) {
			return nil, []domain.SkipReason{domain.SkipMissingField}
		}
	}
	if !row.Truthy("subject") || !row.Truthy("context") {
		return nil, []domain.SkipReason{domain.SkipBlankField}
	}
	vals, _ := row.RequirePresent("subject", "context", "extracted_info")
	return []generator.Instruction{vals}, nil
}

func requireNonBlank(keys ...string) Expander {
	return func(row dataset.Row) ([]generator.Instruction, []domain.SkipReason) {
		vals, reason := row.RequireNonBlank(keys...)
		if reason != "" {
			return nil, []domain.SkipReason{reason}
		}
		return []generator.Instruction{vals}, nil
	}
}

func requirePresent(keys ...string) Expander {
	return func(row dataset.Row) ([]generator.Instruction, []domain.SkipReason) {
		vals, reason := row.RequirePresent(keys...)
		if reason != "" {
			return nil, []domain.SkipReason{reason}
		}
		return []generator.Instruction{vals}, nil
	}
}
