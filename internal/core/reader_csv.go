package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

// sniffSize is how much of a file is examined for encoding and delimiter.
const sniffSize = 32 * 1024

// sniffRecords is how many records the delimiter sniffer compares.
const sniffRecords = 20

// candidateDelimiters are tried in order; earlier wins a tie.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// DelimitedReader reads comma, semicolon, tab or pipe separated text.
// A zero Delimiter is sniffed from the start of the file.
type DelimitedReader struct {
	Delimiter rune
	Encoding  Encoding
}

// Format implements GridReader.
func (DelimitedReader) Format() FormatKind { return FormatDelimitedText }

// Read streams the file through encoding/csv. Blank lines are skipped by the
// csv package. Any parse error discards the rows read so far.
func (r DelimitedReader) Read(in FileInput, onProgress ProgressFunc) (RawGrid, error) {
	rc, err := openInput(FormatDelimitedText, in)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	notify(onProgress, Progress{Phase: PhaseReading, Percent: 0, Message: "reading " + in.Name})

	counter := newCountingReader(rc, in.Size)
	br := bufio.NewReaderSize(counter, sniffSize)
	sample, err := br.Peek(sniffSize)
	atEOF := errors.Is(err, io.EOF)
	if err != nil && !atEOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, &FormatError{Format: FormatDelimitedText, Op: "read", Err: err}
	}

	enc := r.Encoding
	if enc == "" || enc == EncodingAuto {
		enc = sniffEncoding(sample, atEOF)
	}

	delim := r.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(sample, atEOF)
	}

	reader := csv.NewReader(decodeStream(br, enc))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid RawGrid
	lastPct := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Format: FormatDelimitedText, Op: "decode", Err: err}
		}
		grid = append(grid, Row(record))

		if pct := counter.Progress(); pct > lastPct {
			lastPct = pct
			notify(onProgress, Progress{Phase: PhaseReading, Percent: pct, RowsDone: len(grid)})
		}
	}

	notify(onProgress, Progress{Phase: PhaseReading, Percent: 100, RowsDone: len(grid)})
	return grid, nil
}

// SniffDelimiter picks the candidate delimiter that splits the first records
// of sample into the most consistent number of fields. Falls back to ','.
func SniffDelimiter(sample []byte, atEOF bool) rune {
	if !atEOF {
		// Drop the last, probably truncated, line.
		if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
			sample = sample[:i+1]
		}
	}

	best, bestScore, bestWidth := ',', 0, 0
	for _, d := range candidateDelimiters {
		score, width := delimiterScore(sample, d)
		if score > bestScore || (score == bestScore && score > 0 && width > bestWidth) {
			best, bestScore, bestWidth = d, score, width
		}
	}
	return best
}

// delimiterScore returns how many of the first records share the most common
// field count, and that count. Delimiters that never split a line score 0.
func delimiterScore(sample []byte, delim rune) (int, int) {
	reader := csv.NewReader(bytes.NewReader(sample))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	counts := make(map[int]int)
	for range sniffRecords {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) > 1 {
			counts[len(record)]++
		}
	}

	score, width := 0, 0
	for w, n := range counts {
		if n > score || (n == score && w > width) {
			score, width = n, w
		}
	}
	return score, width
}
