package domain

import (
	"log/slog"
	"sort"
)

// SkipReason explains why an input row produced no output.
type SkipReason string

const (
	// SkipMissingField means a required key was absent from the row.
	SkipMissingField SkipReason = "missing_field"

	// SkipBlankField means a required key was present but empty or whitespace.
	SkipBlankField SkipReason = "blank_field"

	// SkipMalformedRow means the line was not valid JSON.
	SkipMalformedRow SkipReason = "malformed_row"

	// SkipNotObject means the line was valid JSON but not an object.
	SkipNotObject SkipReason = "not_object"

	// SkipUnparsablePayload means a nested JSON payload failed to parse.
	SkipUnparsablePayload SkipReason = "unparsable_payload"

	// SkipRejected means the row parsed but failed an acceptance predicate.
	SkipRejected SkipReason = "rejected"

	// SkipGenerationFailed means every candidate model failed for the instruction.
	SkipGenerationFailed SkipReason = "generation_failed"
)

// SkipReport counts skipped rows by reason. The zero value is ready to use.
// It is not safe for concurrent use.
type SkipReport struct {
	counts map[SkipReason]int
}

// Add records one skip for reason.
func (r *SkipReport) Add(reason SkipReason) { r.AddN(reason, 1) }

// AddN records n skips for reason.
func (r *SkipReport) AddN(reason SkipReason, n int) {
	if n <= 0 {
		return
	}
	if r.counts == nil {
		r.counts = make(map[SkipReason]int)
	}
	r.counts[reason] += n
}

// Count returns the number of skips recorded for reason.
func (r *SkipReport) Count(reason SkipReason) int { return r.counts[reason] }

// Total returns the number of skips across all reasons.
func (r *SkipReport) Total() int {
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// Merge adds every count from other into r.
func (r *SkipReport) Merge(other SkipReport) {
	for reason, n := range other.counts {
		r.AddN(reason, n)
	}
}

// Counts returns a copy of the per-reason counts.
func (r *SkipReport) Counts() map[SkipReason]int {
	out := make(map[SkipReason]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// LogValue implements slog.LogValuer so a report can be logged as a group.
func (r SkipReport) LogValue() slog.Value {
	reasons := make([]string, 0, len(r.counts))
	for reason := range r.counts {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	attrs := make([]slog.Attr, 0, len(reasons)+1)
	attrs = append(attrs, slog.Int("total", r.Total()))
	for _, reason := range reasons {
		attrs = append(attrs, slog.Int(reason, r.counts[SkipReason(reason)]))
	}
	return slog.GroupValue(attrs...)
}
