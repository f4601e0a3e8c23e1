package stages

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-synth/internal/dataset"
	"github.com/ahrav/go-synth/internal/domain"
)

const acceptedResult = `{"is_complete": false, "is_accurate": true, "format_valid": true, "missing_fields": [], "incorrect_fields": []}`

func validationLine(t *testing.T, result any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"subject": "s", "description": "d", "context": "c", "extracted_info": "{}",
		"validation_result": result,
	})
	require.NoError(t, err)
	return string(b)
}

func TestKeep(t *testing.T) {
	tests := []struct {
		name   string
		result any
		keep   bool
		reason domain.SkipReason
	}{
		{"accepted string", acceptedResult, true, ""},
		{"accepted with padding", "\n  " + acceptedResult + "  \n", true, ""},
		{"accepted object", map[string]any{
			"is_accurate": true, "format_valid": true, "missing_fields": []any{}, "incorrect_fields": []any{},
		}, true, ""},
		{"not accurate", `{"is_accurate": false, "format_valid": true, "missing_fields": [], "incorrect_fields": []}`, false, domain.SkipRejected},
		{"format invalid", `{"is_accurate": true, "format_valid": false, "missing_fields": [], "incorrect_fields": []}`, false, domain.SkipRejected},
		{"missing fields", `{"is_accurate": true, "format_valid": true, "missing_fields": ["total"], "incorrect_fields": []}`, false, domain.SkipRejected},
		{"incorrect fields", `{"is_accurate": true, "format_valid": true, "missing_fields": [], "incorrect_fields": ["date"]}`, false, domain.SkipRejected},
		{"empty", "", false, domain.SkipBlankField},
		{"unparsable", `{"is_accurate": tru`, false, domain.SkipUnparsablePayload},
		{"wrong type", true, false, domain.SkipUnparsablePayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keep, reason, _ := Keep(dataset.Row{"validation_result": tt.result})
			assert.Equal(t, tt.keep, keep)
			assert.Equal(t, tt.reason, reason)
		})
	}

	keep, reason, err := Keep(dataset.Row{"subject": "s"})
	assert.False(t, keep)
	assert.Equal(t, domain.SkipMissingField, reason)
	assert.NoError(t, err)
}

func TestFilterFile_PreservesBytesAndOrder(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, ValidationsFile)
	out := filepath.Join(dir, FilteredValidationsFile)

	first := `{"subject":"first",  "validation_result": ` + mustQuote(t, acceptedResult) + `}`
	rejected := validationLine(t, `{"is_accurate": false, "format_valid": true, "missing_fields": [], "incorrect_fields": []}`)
	second := `{"validation_result": ` + mustQuote(t, acceptedResult) + `, "subject":"second"}`
	writeLines(t, in, first, rejected, `{"subject":"no result"}`, `garbage`, second)

	summary, err := FilterFile(in, out)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Lines)
	assert.Equal(t, 2, summary.Kept)
	assert.Equal(t, 1, summary.Skips.Count(domain.SkipRejected))
	assert.Equal(t, 1, summary.Skips.Count(domain.SkipMissingField))
	assert.Equal(t, 1, summary.Skips.Count(domain.SkipMalformedRow))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, first+"\n"+second+"\n", string(data))
}

func TestFilterFile_KeepsLineTerminators(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, ValidationsFile)
	out := filepath.Join(dir, FilteredValidationsFile)

	crlf := validationLine(t, acceptedResult) + "\r\n"
	rejected := validationLine(t, `{"is_accurate": false, "format_valid": true, "missing_fields": [], "incorrect_fields": []}`) + "\n"
	last := `{"subject": "last", "validation_result": ` + mustQuote(t, acceptedResult) + `}`
	require.NoError(t, os.WriteFile(in, []byte(crlf+rejected+last), 0o644))

	summary, err := FilterFile(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Kept)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, crlf+last, string(data))
}

func TestFilterFile_MissingInput(t *testing.T) {
	_, err := FilterFile(filepath.Join(t.TempDir(), "nope.jsonl"), filepath.Join(t.TempDir(), "out.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidationResult_RoundTripThroughFilter(t *testing.T) {
	res, err := domain.ParseValidationResult(acceptedResult)
	require.NoError(t, err)

	keep, _, err := Keep(dataset.Row{"validation_result": res.String()})
	require.NoError(t, err)
	assert.True(t, keep)

	again, err := domain.ParseValidationResult(res.String())
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func mustQuote(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestFormatFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, FilteredValidationsFile)
	out := filepath.Join(dir, ConversationsFile)
	writeLines(t, in,
		`{"subject":"s","description":"Extract totals","context":"Invoice #1 total $40","extracted_info":"{\"total\": 40}"}`,
		``,
		`{"subject":"s","description":"d","context":"c"}`,
		`[1,2]`,
		`{"subject":"s2","description":"d2","context":"c2","extracted_info":{"k":"v"},"validation_result":"{}"}`,
	)

	var buf bytes.Buffer
	summary, err := FormatFile(in, out, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Conversations)
	assert.Equal(t, 1, summary.Skips.Count(domain.SkipMissingField))
	assert.Equal(t, 1, summary.Skips.Count(domain.SkipNotObject))
	assert.Contains(t, buf.String(), "Successfully processed and saved 2 conversations to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var convs []domain.Conversation
	require.NoError(t, json.Unmarshal(data, &convs))
	require.Len(t, convs, 2)

	first := convs[0]
	require.Len(t, first, 3)
	assert.Equal(t, domain.Message{Role: domain.RoleSystem, Content: domain.ExtractionSystemPrompt}, first[0])
	assert.Equal(t, "Extract totals\n Here is the context to extract information from: Invoice #1 total $40", first[1].Content)
	assert.Equal(t, `<{"total": 40}`, first[2].Content)
	assert.Equal(t, `<{"k":"v"}`, convs[1][2].Content)
}

func TestFormatFile_EmptyInputWritesEmptyArray(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, FilteredValidationsFile)
	require.NoError(t, os.WriteFile(in, nil, 0o644))
	out := filepath.Join(dir, ConversationsFile)

	var buf bytes.Buffer
	summary, err := FormatFile(in, out, &buf)
	require.NoError(t, err)
	assert.Zero(t, summary.Conversations)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
