package core

// report.go holds read-only views over a finished ParseResult.
// None of them look at anything but the result itself.

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Rates are fractions (0-1) of the processed and total rows.
type Rates struct {
	Success float64 `json:"success"` // Valid rows per processed row
	Error   float64 `json:"error"`   // Invalid rows per processed row
	Warning float64 `json:"warning"` // Warnings per total row
}

// ComputeRates derives success, error and warning rates from r's metadata.
func ComputeRates(r ParseResult) Rates {
	var rates Rates
	if p := r.Metadata.ProcessedRows; p > 0 {
		rates.Success = float64(p-r.Metadata.InvalidRows) / float64(p)
		rates.Error = float64(r.Metadata.InvalidRows) / float64(p)
	}
	if t := r.Metadata.TotalRows; t > 0 {
		rates.Warning = float64(len(r.Warnings)) / float64(t)
	}
	return rates
}

// Throughput returns rows per second, or 0 when no time was recorded.
func Throughput(r ParseResult) float64 {
	if r.Metadata.ProcessingTimeMs <= 0 {
		return 0
	}
	return float64(r.Metadata.TotalRows) * 1000 / float64(r.Metadata.ProcessingTimeMs)
}

// ErrorsByKind groups errors by kind, preserving their order within a kind.
func ErrorsByKind(r ParseResult) map[ErrorKind][]ParseError {
	groups := make(map[ErrorKind][]ParseError)
	for _, e := range r.Errors {
		groups[e.Kind] = append(groups[e.Kind], e)
	}
	return groups
}

// MessageCount is how often one error message occurred.
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// TopErrors returns the n most frequent error messages, most frequent first.
// Messages with equal counts keep first-seen order.
func TopErrors(r ParseResult, n int) []MessageCount {
	if n <= 0 {
		return nil
	}
	index := make(map[string]int)
	var counts []MessageCount
	for _, e := range r.Errors {
		if i, ok := index[e.Message]; ok {
			counts[i].Count++
			continue
		}
		index[e.Message] = len(counts)
		counts = append(counts, MessageCount{Message: e.Message, Count: 1})
	}
	slices.SortStableFunc(counts, func(a, b MessageCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// TextReport renders a plain-text summary of r.
func TextReport(r ParseResult) string {
	var b strings.Builder
	m := r.Metadata
	rates := ComputeRates(r)

	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}

	fmt.Fprintf(&b, "BOQ import report: %s\n", status)
	if m.FileName != "" {
		fmt.Fprintf(&b, "File:            %s (%s)\n", m.FileName, m.DetectedFormat)
	}
	fmt.Fprintf(&b, "Total rows:      %d\n", m.TotalRows)
	fmt.Fprintf(&b, "Processed rows:  %d\n", m.ProcessedRows)
	fmt.Fprintf(&b, "Skipped rows:    %d\n", m.SkippedRows)
	fmt.Fprintf(&b, "Invalid rows:    %d\n", m.InvalidRows)
	fmt.Fprintf(&b, "Items:           %d\n", len(r.Items))
	fmt.Fprintf(&b, "Success rate:    %.1f%%\n", rates.Success*100)
	fmt.Fprintf(&b, "Processing time: %d ms (%.0f rows/s)\n", m.ProcessingTimeMs, Throughput(r))

	if len(m.Columns) > 0 {
		b.WriteString("\nColumns:\n")
		for _, c := range m.Columns {
			fmt.Fprintf(&b, "  %-24s -> %s (%s)\n", c.SourceLabel, c.TargetField, c.Source)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d):\n", len(r.Errors))
		groups := ErrorsByKind(r)
		for _, kind := range []ErrorKind{ErrorFormat, ErrorParsing, ErrorValidation} {
			if n := len(groups[kind]); n > 0 {
				fmt.Fprintf(&b, "  %-10s %d\n", kind, n)
			}
		}
		b.WriteString("\nMost frequent:\n")
		for _, mc := range TopErrors(r, 5) {
			fmt.Fprintf(&b, "  %4d x %s\n", mc.Count, mc.Message)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  row %d: %s\n", w.Row, w.Message)
		}
	}

	return b.String()
}
