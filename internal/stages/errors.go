package stages

import "errors"

var (
	// ErrUnknownStage is returned for a stage name outside the catalog.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNoResult is returned when a generator reports neither records nor an error.
	ErrNoResult = errors.New("generator returned no result")
)
