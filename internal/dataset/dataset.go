package dataset

import (
	"fmt"
	"sync"
)

// Dataset is a named, caller-owned collection of generated records. A stage
// resets its dataset before a run, appends records as they are produced, and
// exports the result once. It is safe for concurrent use.
type Dataset[T any] struct {
	name        string
	description string

	mu      sync.Mutex
	records []T
}

// New creates an empty dataset.
func New[T any](name, description string) *Dataset[T] {
	return &Dataset[T]{name: name, description: description}
}

// Name returns the dataset name.
func (d *Dataset[T]) Name() string { return d.name }

// Description returns the human-readable description.
func (d *Dataset[T]) Description() string { return d.description }

// Reset discards all records and returns d for chaining.
func (d *Dataset[T]) Reset() *Dataset[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = nil
	return d
}

// Append adds records in order.
func (d *Dataset[T]) Append(records ...T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, records...)
}

// Len returns the number of records.
func (d *Dataset[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

// Records returns a copy of the records in insertion order.
func (d *Dataset[T]) Records() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]T, len(d.records))
	copy(out, d.records)
	return out
}

// ExportJSONL writes the records to path, one per line.
func (d *Dataset[T]) ExportJSONL(path string) error {
	if err := WriteJSONL(path, d.Records()); err != nil {
		return fmt.Errorf("export dataset %s: %w", d.name, err)
	}
	return nil
}
