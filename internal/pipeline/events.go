package pipeline

import (
	"fmt"
	"strings"
)

// EventKind classifies a driver notification.
type EventKind string

const (
	EventStart         EventKind = "start"
	EventFileChecked   EventKind = "file_checked"
	EventSeedVerified  EventKind = "seed_verified"
	EventSeedMissing   EventKind = "seed_missing"
	EventStepSkipped   EventKind = "step_skipped"
	EventStepStarted   EventKind = "step_started"
	EventStepSucceeded EventKind = "step_succeeded"
	EventStepFailed    EventKind = "step_failed"
	EventInputMissing  EventKind = "input_missing"
	EventCompleted     EventKind = "completed"
)

// Event is a state change reported to the host.
type Event struct {
	Kind  EventKind `json:"kind"`
	State State     `json:"state"`
	Step  string    `json:"step,omitempty"`
	Path  string    `json:"path,omitempty"`
	Size  int64     `json:"size,omitempty"`
	// Exists is set for EventFileChecked.
	Exists bool   `json:"exists,omitempty"`
	Error  string `json:"error,omitempty"`
}

var banner = strings.Repeat("=", 50)

// Success reports whether the event marks a successful transition.
func (e Event) Success() bool {
	switch e.Kind {
	case EventSeedVerified, EventStepSucceeded, EventCompleted:
		return true
	}
	return false
}

// Failure reports whether the event marks a failure.
func (e Event) Failure() bool {
	switch e.Kind {
	case EventSeedMissing, EventStepFailed, EventInputMissing:
		return true
	}
	return false
}

// String renders the console line for the event.
func (e Event) String() string {
	switch e.Kind {
	case EventStart:
		return "\nStarting Data Generation Pipeline\n================================"
	case EventFileChecked:
		if e.Exists {
			return fmt.Sprintf("File %s exists with size: %d bytes", e.Path, e.Size)
		}
		return fmt.Sprintf("File %s does not exist", e.Path)
	case EventSeedVerified:
		return fmt.Sprintf("\n✅ Initial data file verified: %s", e.Path)
	case EventSeedMissing:
		return fmt.Sprintf("\n❌ Initial data file not found: %s", e.Path)
	case EventStepSkipped:
		return fmt.Sprintf("\nSkipping %s - output file already exists", e.Step)
	case EventStepStarted:
		return fmt.Sprintf("\n%s\nRunning: %s\n%s", banner, e.Step, banner)
	case EventStepSucceeded:
		return fmt.Sprintf("\n✅ %s completed successfully", e.Step)
	case EventStepFailed:
		return fmt.Sprintf("\n❌ Error in %s: %s", e.Step, e.Error)
	case EventInputMissing:
		return fmt.Sprintf("\n❌ Required input file %s not found", e.Path)
	case EventCompleted:
		return "\n✅ Pipeline completed successfully!"
	default:
		return string(e.Kind)
	}
}
