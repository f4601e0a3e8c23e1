package domain

// QuestionOutput is a question written in a persona's voice about a context.
type QuestionOutput struct {
	Question string `json:"question" validate:"required"`
	Persona  string `json:"persona"`
	Context  string `json:"context"`
}

// AnswerOutput is an answer to a persona's question, grounded in a context.
type AnswerOutput struct {
	Persona  string `json:"persona"`
	Question string `json:"question"`
	Context  string `json:"context"`
	Answer   string `json:"answer" validate:"required"`
}

// QuestionInput is one row of the question task's input file.
type QuestionInput struct {
	PersonaBio string `json:"persona_bio" validate:"required,notblank"`
	Context    string `json:"context" validate:"required,notblank"`
}

// Validate checks the question task input.
func (q *QuestionInput) Validate() error { return ValidateRecord(q) }

// AnswerInput is one row of the answer task's input file.
type AnswerInput struct {
	Persona  string `json:"persona"`
	Question string `json:"question" validate:"required,notblank"`
	Context  string `json:"context" validate:"required,notblank"`
}

// Validate checks the answer task input.
func (a *AnswerInput) Validate() error { return ValidateRecord(a) }
