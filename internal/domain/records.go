package domain

// Dataset records. Each stage writes one of these per JSON line; field names
// are the on-disk keys and are shared with the prompt template placeholders.

// SubCategory holds three sub-categories, each with a description, generated
// for a single main category.
type SubCategory struct {
	MainCategory string `json:"main_category" validate:"required,notblank"`
	SubCategory1 string `json:"sub_category_1" validate:"required,notblank"`
	Description1 string `json:"description_1" validate:"required,notblank"`
	SubCategory2 string `json:"sub_category_2" validate:"required,notblank"`
	Description2 string `json:"description_2" validate:"required,notblank"`
	SubCategory3 string `json:"sub_category_3" validate:"required,notblank"`
	Description3 string `json:"description_3" validate:"required,notblank"`
}

// Validate checks that every sub-category slot is populated.
func (s *SubCategory) Validate() error { return ValidateRecord(s) }

// Subject names a focused extraction task.
type Subject struct {
	Subject     string `json:"subject" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
}

// Validate checks the subject record.
func (s *Subject) Validate() error { return ValidateRecord(s) }

// Context is a synthesized document for a subject.
type Context struct {
	Subject     string `json:"subject" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
	Context     string `json:"context" validate:"required,notblank"`
}

// Validate checks the context record.
func (c *Context) Validate() error { return ValidateRecord(c) }

// Extraction is the structured information pulled out of a context.
// ExtractedInfo is itself free-form text, usually JSON-like.
type Extraction struct {
	Subject       string `json:"subject" validate:"required,notblank"`
	Description   string `json:"description" validate:"required,notblank"`
	Context       string `json:"context" validate:"required,notblank"`
	ExtractedInfo string `json:"extracted_info" validate:"required,notblank"`
}

// Validate checks the extraction record.
func (e *Extraction) Validate() error { return ValidateRecord(e) }

// Validation pairs an extraction with the judge's verdict. ValidationResult
// holds the raw JSON text of a ValidationResult object.
type Validation struct {
	Subject          string `json:"subject"`
	Description      string `json:"description"`
	Context          string `json:"context"`
	ExtractedInfo    string `json:"extracted_info"`
	ValidationResult string `json:"validation_result" validate:"required,notblank"`
}

// Validate checks the validation record. Only the verdict is mandatory since
// the upstream fields are forwarded as-is.
func (v *Validation) Validate() error { return ValidateRecord(v) }

// QualityScore is an extraction graded on a 0..1 scale.
type QualityScore struct {
	Subject       string  `json:"subject" validate:"required,notblank"`
	Context       string  `json:"context" validate:"required,notblank"`
	ExtractedInfo string  `json:"extracted_info"`
	QualityScore  float64 `json:"quality_score" validate:"gte=0,lte=1"`
}

// Validate checks the score record and its range.
func (q *QualityScore) Validate() error { return ValidateRecord(q) }
