package core

import "time"

// ProcessStats are the row counts of one processor pass.
type ProcessStats struct {
	TotalRows     int // Rows in the data window
	ProcessedRows int // Rows that reached item construction
	SkippedRows   int // Empty, summary and repeated header rows
	InvalidRows   int // Processed rows with parsing or validation errors
	HeaderRow     int // 0-based index of the header row, -1 when none was used
	Columns       []ColumnMapping
}

// ResultBuilder accumulates the items, errors and warnings of one run.
// It is not safe for concurrent use and must not be reused after Build.
type ResultBuilder struct {
	fileName string
	format   FormatKind
	items    []BOQItem
	errors   []ParseError
	warnings []ParseWarning
}

// NewResultBuilder starts a result for fileName read as format.
func NewResultBuilder(fileName string, format FormatKind) *ResultBuilder {
	return &ResultBuilder{fileName: fileName, format: format}
}

// AddItem appends an item to the result.
func (b *ResultBuilder) AddItem(item BOQItem) {
	b.items = append(b.items, item)
}

// AddError records an error.
func (b *ResultBuilder) AddError(e ParseError) {
	b.errors = append(b.errors, e)
}

// AddWarning records a warning.
func (b *ResultBuilder) AddWarning(w ParseWarning) {
	b.warnings = append(b.warnings, w)
}

// ErrorCount returns the number of errors recorded so far.
func (b *ResultBuilder) ErrorCount() int { return len(b.errors) }

// Build hands the accumulated collections to a ParseResult and empties the builder.
func (b *ResultBuilder) Build(stats ProcessStats, elapsed time.Duration) ParseResult {
	result := ParseResult{
		Success:  len(b.errors) == 0,
		Items:    b.items,
		Errors:   b.errors,
		Warnings: b.warnings,
		Metadata: Metadata{
			FileName:         b.fileName,
			TotalRows:        stats.TotalRows,
			ProcessedRows:    stats.ProcessedRows,
			SkippedRows:      stats.SkippedRows,
			InvalidRows:      stats.InvalidRows,
			ProcessingTimeMs: elapsed.Milliseconds(),
			DetectedFormat:   b.format,
			HeaderRow:        stats.HeaderRow,
			Columns:          stats.Columns,
		},
	}

	// JSON encodes [] rather than null.
	if result.Items == nil {
		result.Items = []BOQItem{}
	}
	if result.Errors == nil {
		result.Errors = []ParseError{}
	}
	if result.Warnings == nil {
		result.Warnings = []ParseWarning{}
	}

	b.items, b.errors, b.warnings = nil, nil, nil
	return result
}

// FailedResult builds the result of a run that ended before any row was
// processed: exactly one error and no items.
func FailedResult(fileName string, format FormatKind, kind ErrorKind, err error, elapsed time.Duration) ParseResult {
	b := NewResultBuilder(fileName, format)
	b.AddError(ParseError{Message: err.Error(), Kind: kind})
	return b.Build(ProcessStats{HeaderRow: -1}, elapsed)
}
