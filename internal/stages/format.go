package stages

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
)

// FormatSummary reports a formatter run.
type FormatSummary struct {
	Lines         int
	Conversations int
	Skips         domain.SkipReport
}

var conversationKeys = []string{"subject", "description", "context", "extracted_info"}

// FormatLines converts every line carrying all four extraction keys into a
// three-turn conversation.
func FormatLines(lines []dataset.Line) ([]domain.Conversation, FormatSummary) {
	summary := FormatSummary{Lines: len(lines)}
	convs := make([]domain.Conversation, 0, len(lines))
	for _, l := range lines {
		if l.Skip != "" {
			slog.Warn("Error processing entry", "line", l.Number, "error", l.Err)
			summary.Skips.Add(l.Skip)
			continue
		}
		vals, reason := l.Row.RequirePresent(conversationKeys...)
		if reason != "" {
			summary.Skips.Add(reason)
			continue
		}
		convs = append(convs, domain.NewExtractionConversation(vals["description"], vals["context"], vals["extracted_info"]))
	}
	summary.Conversations = len(convs)
	return convs, summary
}

// FormatFile converts inPath into a JSON array of conversations at outPath
// and reports progress to w.
func FormatFile(inPath, outPath string, w io.Writer) (FormatSummary, error) {
	fmt.Fprintf(w, "Starting conversion from %s to %s\n", inPath, outPath)

	lines, err := dataset.ReadLines(inPath)
	if err != nil {
		return FormatSummary{}, fmt.Errorf("format: %w", err)
	}
	convs, summary := FormatLines(lines)
	if err := dataset.WriteJSONArray(outPath, convs); err != nil {
		return summary, fmt.Errorf("format: %w", err)
	}

	fmt.Fprintf(w, "\nSuccessfully processed and saved %d conversations to %s\n", summary.Conversations, outPath)
	return summary, nil
}
