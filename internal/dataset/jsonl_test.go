package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-synth/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanLines(t *testing.T) {
	input := strings.Join([]string{
		`{"main_category": "Finance"}`,
		``,
		`   `,
		`{"main_category": "Health"`,
		`["not", "an", "object"]`,
		`{"main_category": "Legal"}`,
	}, "\n")

	var got []Line
	err := ScanLines(strings.NewReader(input), func(l Line) error {
		got = append(got, l)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, "Finance", got[0].Row["main_category"])
	assert.Empty(t, got[0].Skip)

	assert.Equal(t, 4, got[1].Number)
	assert.Equal(t, domain.SkipMalformedRow, got[1].Skip)
	assert.Error(t, got[1].Err)
	assert.Nil(t, got[1].Row)

	assert.Equal(t, domain.SkipNotObject, got[2].Skip)

	assert.Equal(t, 6, got[3].Number)
	assert.Equal(t, `{"main_category": "Legal"}`, string(got[3].Raw))
	assert.Empty(t, got[3].EOL)
}

func TestScanLines_KeepsTerminators(t *testing.T) {
	input := "{\"a\": 1}\r\n\r\n{\"b\": 2}\n{\"c\": 3}"

	var got []Line
	require.NoError(t, ScanLines(strings.NewReader(input), func(l Line) error {
		got = append(got, l)
		return nil
	}))
	require.Len(t, got, 3)

	tests := []struct {
		raw, eol string
		number   int
	}{
		{`{"a": 1}`, "\r\n", 1},
		{`{"b": 2}`, "\n", 3},
		{`{"c": 3}`, "", 4},
	}
	var rebuilt []byte
	for i, tt := range tests {
		assert.Equal(t, tt.raw, string(got[i].Raw))
		assert.Equal(t, tt.eol, string(got[i].EOL))
		assert.Equal(t, tt.number, got[i].Number)
		assert.Equal(t, float64(i+1), got[i].Row[string(rune('a'+i))])
		rebuilt = append(rebuilt, got[i].Bytes()...)
	}
	assert.Equal(t, "{\"a\": 1}\r\n{\"b\": 2}\n{\"c\": 3}", string(rebuilt))
}

func TestReadRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "categories.jsonl",
		"{\"main_category\": \"Finance\"}\nnot json\n{\"main_category\": \"Health\"}\n42\n")

	rows, report, err := ReadRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Finance", rows[0]["main_category"])
	assert.Equal(t, "Health", rows[1]["main_category"])
	assert.Equal(t, 1, report.Count(domain.SkipMalformedRow))
	assert.Equal(t, 1, report.Count(domain.SkipNotObject))
}

func TestReadRows_MissingFile(t *testing.T) {
	_, _, err := ReadRows(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "subjects.jsonl")

	records := []domain.Subject{
		{Subject: "Invoice totals", Description: "Extract <amount> & currency"},
		{Subject: "Payroll", Description: "Extract salary"},
	}
	require.NoError(t, WriteJSONL(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "<amount> & currency", "HTML characters are written unescaped")

	rows, report, err := ReadRows(path)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
	got, err := Decode[domain.Subject](rows[1])
	require.NoError(t, err)
	assert.Equal(t, records[1], got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteRawLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.jsonl")
	lines := [][]byte{[]byte("{\"a\":  1}\r\n"), []byte(`{"b":2 }`)}
	require.NoError(t, WriteRawLines(path, lines))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":  1}\r\n{\"b\":2 }", string(data))
}

func TestWriteJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	t.Run("indented array", func(t *testing.T) {
		convs := []domain.Conversation{domain.NewExtractionConversation("d", "c", "x")}
		require.NoError(t, WriteJSONArray(path, convs))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "[\n  [\n    {\n"))
		assert.Contains(t, string(data), `"content": "<x"`)

		var decoded [][]domain.Message
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded, 1)
		assert.Len(t, decoded[0], 3)
	})

	t.Run("nil slice writes empty array", func(t *testing.T) {
		require.NoError(t, WriteJSONArray[domain.Conversation](path, nil))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(data))
	})
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	full := writeFile(t, dir, "full.jsonl", "{}\n")
	missing := filepath.Join(dir, "missing.jsonl")

	size, ok, err := Stat(full)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), size)

	_, ok, err = Stat(missing)
	require.NoError(t, err)
	assert.False(t, ok)
}
