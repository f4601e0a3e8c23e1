package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrSeedMissing   = errors.New("initial data file not found")
	ErrInputMissing  = errors.New("required input file not found")
	ErrOutputMissing = errors.New("output file was not created or is empty")
	ErrStageFailed   = errors.New("stage failed")

	// ErrHostAborted marks host errors that end the run as they are
	// instead of being read as a missing file.
	ErrHostAborted = errors.New("host aborted")
)

// OutputError reports a step whose output file is absent or empty.
type OutputError struct {
	Path string
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("Output file %s was not created or is empty", e.Path)
}

// Unwrap lets errors.Is match ErrOutputMissing.
func (e *OutputError) Unwrap() error { return ErrOutputMissing }
