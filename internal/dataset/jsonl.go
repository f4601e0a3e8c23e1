package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ahrav/go-synth/internal/domain"
)

// maxLineBytes bounds a single JSONL line. Generated contexts run to a few
// thousand words, well under this.
const maxLineBytes = 16 << 20

// Line is one non-blank line of a JSONL file.
type Line struct {
	// Number is the 1-based line number in the source file.
	Number int
	// Raw holds the line bytes exactly as read, without the line terminator.
	Raw []byte
	// EOL is the terminator that followed Raw: "\n", "\r\n", or empty for a
	// final line without one.
	EOL []byte
	// Row is the decoded object; nil when Skip is set.
	Row Row
	// Skip is set when the line is not a JSON object.
	Skip domain.SkipReason
	// Err carries the decode error behind Skip, if any.
	Err error
}

// Bytes returns the line exactly as it appeared in the source, terminator
// included.
func (l Line) Bytes() []byte {
	out := make([]byte, 0, len(l.Raw)+len(l.EOL))
	return append(append(out, l.Raw...), l.EOL...)
}

// scanLinesWithEOL is bufio.ScanLines without stripping the terminator.
func scanLinesWithEOL(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func splitEOL(tok []byte) (raw, eol []byte) {
	n := len(tok)
	switch {
	case bytes.HasSuffix(tok, []byte("\r\n")):
		n -= 2
	case bytes.HasSuffix(tok, []byte("\n")):
		n--
	}
	return tok[:n:n], tok[n:]
}

// ScanLines reads JSONL from r and calls fn for every non-blank line. Lines
// that fail to decode are still delivered, with Skip set, so callers can
// count them. Scanning stops at the first error returned by fn.
func ScanLines(r io.Reader, fn func(Line) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanLinesWithEOL)

	n := 0
	for sc.Scan() {
		n++
		raw, eol := splitEOL(append([]byte(nil), sc.Bytes()...))
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		line := Line{Number: n, Raw: raw, EOL: eol}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			line.Skip = domain.SkipMalformedRow
			line.Err = err
		} else if obj, ok := v.(map[string]any); ok {
			line.Row = Row(obj)
		} else {
			line.Skip = domain.SkipNotObject
			line.Err = fmt.Errorf("line %d: expected object, got %T", n, v)
		}

		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan jsonl: %w", err)
	}
	return nil
}

// ReadLines reads every non-blank line of the JSONL file at path.
func ReadLines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []Line
	err = ScanLines(f, func(l Line) error {
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ReadRows reads the JSONL file at path and returns the decodable object rows
// in file order together with a report of the lines that were not.
func ReadRows(path string) ([]Row, domain.SkipReport, error) {
	var report domain.SkipReport
	lines, err := ReadLines(path)
	if err != nil {
		return nil, report, err
	}

	rows := make([]Row, 0, len(lines))
	for _, l := range lines {
		if l.Skip != "" {
			report.Add(l.Skip)
			continue
		}
		rows = append(rows, l.Row)
	}
	return rows, report, nil
}

// WriteJSONL writes one JSON object per line to path, replacing any existing
// file. Parent directories are created as needed.
func WriteJSONL[T any](path string, records []T) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i := range records {
			if err := enc.Encode(records[i]); err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
		}
		return nil
	})
}

// WriteRawLines writes each line byte for byte. Lines carry their own
// terminators, as returned by Line.Bytes.
func WriteRawLines(path string, lines [][]byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		for _, l := range lines {
			if _, err := w.Write(l); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteJSONArray writes items as a single JSON array indented by two spaces.
func WriteJSONArray[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	})
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place so readers never observe a partial file.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Stat reports whether path exists and its size in bytes.
func Stat(path string) (size int64, exists bool, err error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.Size(), true, nil
}
