package domain

import "errors"

// ErrInvalidRecord indicates that a dataset record failed struct validation.
var ErrInvalidRecord = errors.New("invalid dataset record")

// ErrInvalidPromptSpec indicates that a rendered prompt record failed validation.
var ErrInvalidPromptSpec = errors.New("prompt spec validation failed")

// ErrMissingVariable indicates that a template placeholder has no value in the instruction.
var ErrMissingVariable = errors.New("missing template variable")

// ErrInvalidModelID indicates a model identifier that is not of the form "provider:model".
var ErrInvalidModelID = errors.New("invalid model identifier")

// ErrInvalidValidationResult indicates a validation_result payload that is not a JSON object.
var ErrInvalidValidationResult = errors.New("invalid validation result payload")
