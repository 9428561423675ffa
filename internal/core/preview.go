package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Sample limits
const (
	DefaultPreviewSamples = 10
	maxErrorSamples       = 20
)

// PreviewSummary contains the row counts a full import would produce.
type PreviewSummary struct {
	TotalRows   int `json:"totalRows"`
	ValidRows   int `json:"validRows"`
	InvalidRows int `json:"invalidRows"`
	SkippedRows int `json:"skippedRows"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
}

// Preview is a read-only analysis of a file: how its header was read, how
// columns were mapped, and samples of what an import would keep or reject.
type Preview struct {
	FileName         string          `json:"fileName"`
	Format           FormatKind      `json:"format"`
	HeaderRow        int             `json:"headerRow"`
	Header           []string        `json:"header"`
	Columns          []ColumnMapping `json:"columns"`
	Unmapped         []string        `json:"unmapped"`
	MissingRequired  []string        `json:"missingRequired"`
	Summary          PreviewSummary  `json:"summary"`
	ItemSamples      []BOQItem       `json:"itemSamples"`
	ErrorSamples     []ParseError    `json:"errorSamples"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// Preview analyzes in without producing a run: observers and progress
// listeners are not called. samples bounds the item samples; values <= 0
// use DefaultPreviewSamples. A file that cannot be read is returned as an
// error rather than a failed result.
func (p *Pipeline) Preview(ctx context.Context, in FileInput, samples int, opts ...ParseOption) (*Preview, error) {
	start := time.Now()
	if samples <= 0 {
		samples = DefaultPreviewSamples
	}

	settings := runSettings{config: p.Configuration()}
	for _, opt := range opts {
		opt(&settings)
	}
	cfg := settings.config

	kind, err := DetectFormat(in.Name, in.MediaType, in.Size, cfg.maxFileSize())
	if err != nil {
		return nil, err
	}
	grid, err := ReaderFor(kind, cfg).Read(in, nil)
	if err != nil {
		return nil, err
	}

	logger := LoggerFromContext(ctx).With("file", in.Name)
	b := NewResultBuilder(in.Name, kind)
	stats := NewDataProcessor(cfg, logger).ForFormat(kind).Process(grid, b, nil)
	result := b.Build(stats, time.Since(start))

	preview := &Preview{
		FileName:  in.Name,
		Format:    kind,
		HeaderRow: stats.HeaderRow,
		Columns:   stats.Columns,
		Summary: PreviewSummary{
			TotalRows:   stats.TotalRows,
			ValidRows:   len(result.Items),
			InvalidRows: stats.InvalidRows,
			SkippedRows: stats.SkippedRows,
			Errors:      len(result.Errors),
			Warnings:    len(result.Warnings),
		},
		ItemSamples:  result.Items[:min(samples, len(result.Items))],
		ErrorSamples: result.Errors[:min(maxErrorSamples, len(result.Errors))],
	}

	if stats.HeaderRow >= 0 && stats.HeaderRow < len(grid) {
		preview.Header = grid[stats.HeaderRow]
	}
	preview.Unmapped, preview.MissingRequired = mappingGaps(preview.Header, stats.Columns)
	preview.ProcessingTimeMs = time.Since(start).Milliseconds()

	logger.Debug("preview finished", "items", preview.Summary.ValidRows, "errors", preview.Summary.Errors)
	return preview, nil
}

// mappingGaps lists non-empty header labels no field was mapped to, and the
// required fields that found no column.
func mappingGaps(header Row, mappings []ColumnMapping) (unmapped, missing []string) {
	mapped := make(map[int]bool, len(mappings))
	for _, m := range mappings {
		mapped[m.Index] = true
	}
	for i, label := range header {
		if strings.TrimSpace(label) != "" && !mapped[i] {
			unmapped = append(unmapped, label)
		}
	}
	return unmapped, MissingRequiredFields(mappings)
}

// MatchHeaders scores how well a file's header labels cover a known set of
// labels: the fraction of known labels present, compared case-insensitively.
func MatchHeaders(header, known []string) float64 {
	if len(known) == 0 {
		return 0
	}

	set := make(map[string]bool, len(header))
	for _, h := range header {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}

	matched := 0
	for _, k := range known {
		if set[strings.ToLower(strings.TrimSpace(k))] {
			matched++
		}
	}
	return float64(matched) / float64(len(known))
}

// HeaderMatch is a scored candidate for a header layout.
type HeaderMatch struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RankMatches drops candidates scoring below threshold and sorts the rest by
// descending score, then name.
func RankMatches(matches []HeaderMatch, threshold float64) []HeaderMatch {
	out := matches[:0:0]
	for _, m := range matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}
