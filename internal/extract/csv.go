package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/parsebank-dev/parsebank/internal/model"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// candidateDelimiters are tried in order; ties go to the earlier one.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// CSVExtractor reads delimited text files.
type CSVExtractor struct {
	Delimiter rune // 0 = detect from the first non-empty line
}

func (e *CSVExtractor) Kind() model.Kind { return model.KindCSV }

// Extract yields one row per record. Malformed records are skipped and
// counted. A quote left open across lines costs only the line it opened on:
// reading resumes on the next line.
func (e *CSVExtractor) Extract(ctx context.Context, doc model.RawDocument) (*Stream, error) {
	data := bytes.TrimPrefix(doc.Bytes(), utf8BOM)
	delim := e.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(data)
	}

	return newStream(func(yield func(model.RawRow) bool, skip func()) error {
		offset, line := 0, 1
		for offset >= 0 {
			var err error
			offset, line, err = readRecords(ctx, data, offset, line, delim, yield, skip)
			if err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// readRecords reads data from offset, whose first line is numbered line. It
// returns where to resume after a record that spilled over several lines
// because of an open quote, or a negative offset when reading is done.
func readRecords(ctx context.Context, data []byte, offset, line int, delim rune,
	yield func(model.RawRow) bool, skip func()) (int, int, error) {
	rest := data[offset:]
	cr := csv.NewReader(bytes.NewReader(rest))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	resume := func(startLine int) (int, int, error) {
		skip()
		next := lineOffset(rest, startLine+1)
		if next < 0 {
			return -1, 0, nil
		}
		return offset + next, line + startLine, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return -1, 0, err
		}
		start := cr.InputOffset()
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return -1, 0, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if perr.Line > perr.StartLine {
				return resume(perr.StartLine)
			}
			skip()
			continue
		}
		if err != nil {
			return -1, 0, fmt.Errorf("reading CSV: %w", err)
		}

		recLine, _ := cr.FieldPos(0)
		if bytes.Count(rest[start:cr.InputOffset()], []byte{'"'})%2 == 1 {
			// Quote still open at the end of input.
			return resume(recLine)
		}
		if !yield(model.RawRow{Cells: rec, Page: 1, Line: line + recLine - 1}) {
			return -1, 0, nil
		}
	}
}

// lineOffset returns the byte offset where line n (1-based) starts, or -1
// when data has fewer lines.
func lineOffset(data []byte, n int) int {
	off := 0
	for range n - 1 {
		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			return -1
		}
		off += i + 1
	}
	if off >= len(data) {
		return -1
	}
	return off
}

// DetectDelimiter counts candidate delimiters outside quotes on the first
// non-empty line and returns the most frequent, or ',' when none appear.
func DetectDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		counts := make(map[rune]int)
		inQuote := false
		for _, r := range string(line) {
			if r == '"' {
				inQuote = !inQuote
				continue
			}
			if !inQuote {
				counts[r]++
			}
		}
		best, bestN := ',', 0
		for _, d := range candidateDelimiters {
			if counts[d] > bestN {
				best, bestN = d, counts[d]
			}
		}
		return best
	}
	return ','
}
