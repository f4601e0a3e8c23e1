package stages

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
)

// FilterSummary reports a filter run.
type FilterSummary struct {
	Lines int
	Kept  int
	Skips domain.SkipReport
}

// Keep decides whether a validation row is accepted, returning the skip
// reason when it is not. A missing, empty or unparsable validation_result
// rejects the row.
func Keep(row dataset.Row) (bool, domain.SkipReason, error) {
	raw, ok := row["validation_result"]
	if !ok {
		return false, domain.SkipMissingField, nil
	}
	if s, isString := raw.(string); raw == nil || (isString && strings.TrimSpace(s) == "") {
		return false, domain.SkipBlankField, nil
	}

	res, err := domain.ParseValidationResult(raw)
	if err != nil {
		return false, domain.SkipUnparsablePayload, err
	}
	if !res.Accepted() {
		return false, domain.SkipRejected, nil
	}
	return true, "", nil
}

// FilterLines returns the accepted lines in input order, each with its
// original terminator.
func FilterLines(lines []dataset.Line) ([][]byte, FilterSummary) {
	summary := FilterSummary{Lines: len(lines)}
	var kept [][]byte
	for _, l := range lines {
		if l.Skip != "" {
			slog.Warn("skipping unreadable validation line", "line", l.Number, "error", l.Err)
			summary.Skips.Add(l.Skip)
			continue
		}
		ok, reason, err := Keep(l.Row)
		if err != nil {
			slog.Warn("dropping validation with unparsable result", "line", l.Number, "error", err)
		}
		if !ok {
			summary.Skips.Add(reason)
			continue
		}
		kept = append(kept, l.Bytes())
	}
	summary.Kept = len(kept)
	return kept, summary
}

// FilterFile keeps the fully positive validations of inPath, writing them
// to outPath byte for byte.
func FilterFile(inPath, outPath string) (FilterSummary, error) {
	lines, err := dataset.ReadLines(inPath)
	if err != nil {
		return FilterSummary{}, fmt.Errorf("filter: %w", err)
	}
	kept, summary := FilterLines(lines)
	if err := dataset.WriteRawLines(outPath, kept); err != nil {
		return summary, fmt.Errorf("filter: %w", err)
	}
	return summary, nil
}
