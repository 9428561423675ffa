package core

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
)

// ProgressInterval is how many rows pass between processing progress updates.
const ProgressInterval = 100

var (
	// ErrEmptyGrid is recorded when a reader produced no rows at all.
	ErrEmptyGrid = errors.New("file contains no rows")

	// ErrNoDataRows is recorded when nothing follows the header row.
	ErrNoDataRows = errors.New("no data rows found after header")
)

// DataProcessor turns a RawGrid into BOQ items. A processor is built for one
// configuration; a new configuration means a new processor.
type DataProcessor struct {
	config ParseConfig
	mapper *ColumnMapper
	logger *slog.Logger
	format FormatKind

	// build turns a classified record into a candidate item; tests replace it.
	build func(rec RawRecord, line int, labels map[string]string, b *ResultBuilder) BOQItem
}

// NewDataProcessor creates a processor for cfg. A nil logger uses slog.Default().
func NewDataProcessor(cfg ParseConfig, logger *slog.Logger) *DataProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.Clone()
	p := &DataProcessor{
		config: cfg,
		mapper: NewColumnMapper(cfg),
		logger: logger,
	}
	p.build = p.buildItem
	return p
}

// ForFormat tells the processor which reader produced the grid. Spreadsheet
// readers render numeric cells in machine notation, which is then read
// independently of the configured locale.
func (p *DataProcessor) ForFormat(kind FormatKind) *DataProcessor {
	p.format = kind
	return p
}

// Process classifies, builds and validates every row of the data window,
// recording items, errors and warnings in b. A failure while building one
// row is recorded against that row and never stops the remaining rows.
func (p *DataProcessor) Process(grid RawGrid, b *ResultBuilder, onProgress ProgressFunc) ProcessStats {
	stats := ProcessStats{HeaderRow: -1}

	if len(grid) == 0 {
		b.AddError(ParseError{Message: ErrEmptyGrid.Error(), Kind: ErrorParsing})
		return stats
	}

	headerIdx := p.mapper.DetectHeaderRow(grid)
	stats.HeaderRow = headerIdx

	var header Row
	if headerIdx < len(grid) {
		header = grid[headerIdx]
	}
	mappings := p.mapper.MapColumns(header)
	stats.Columns = mappings

	for _, field := range MissingRequiredFields(mappings) {
		b.AddWarning(ParseWarning{
			Row:     headerIdx + 1,
			Column:  field,
			Message: fmt.Sprintf("no column mapped to required field %q; add a column override for it", field),
			Kind:    WarningSuggestion,
		})
	}

	start := headerIdx + 1 + max(p.config.RowsToSkipAfterHeader, 0)
	if start >= len(grid) {
		b.AddError(ParseError{Row: headerIdx + 1, Message: ErrNoDataRows.Error(), Kind: ErrorParsing})
		return stats
	}

	labels := make(map[string]string, len(mappings))
	for _, cm := range mappings {
		labels[cm.TargetField] = cm.SourceLabel
	}

	stats.TotalRows = len(grid) - start
	notify(onProgress, Progress{Phase: PhaseProcessing, Percent: 0, RowsTotal: stats.TotalRows})

	for i := start; i < len(grid); i++ {
		p.processRow(grid[i], i+1, mappings, labels, b, &stats)

		done := i - start + 1
		if done%ProgressInterval == 0 {
			notify(onProgress, Progress{
				Phase:     PhaseProcessing,
				Percent:   done * 100 / stats.TotalRows,
				RowsDone:  done,
				RowsTotal: stats.TotalRows,
			})
		}
	}

	notify(onProgress, Progress{
		Phase:     PhaseProcessing,
		Percent:   100,
		RowsDone:  stats.TotalRows,
		RowsTotal: stats.TotalRows,
	})
	return stats
}

// processRow handles a single data row. line is the 1-based grid position.
func (p *DataProcessor) processRow(row Row, line int, mappings []ColumnMapping, labels map[string]string, b *ResultBuilder, stats *ProcessStats) {
	counted := false
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("row processing panicked", "row", line, "panic", r)
			if !counted {
				stats.ProcessedRows++
			}
			stats.InvalidRows++
			b.AddError(ParseError{
				Row:     line,
				Message: fmt.Sprintf("unexpected error while building row: %v", r),
				Kind:    ErrorParsing,
			})
		}
	}()

	rec := ToRawRecord(row, mappings)
	if reason := skipReason(rec); reason != "" {
		p.logger.Debug("row skipped", "row", line, "reason", reason)
		counted = true
		stats.SkippedRows++
		return
	}
	counted = true
	stats.ProcessedRows++

	item := p.build(rec, line, labels, b)
	result := ValidateItem(item)
	if result.Valid {
		b.AddItem(item)
		return
	}

	stats.InvalidRows++
	for _, ve := range result.Errors {
		b.AddError(ParseError{
			Row:     line,
			Column:  columnLabel(labels, ve.Field),
			Value:   ve.Value,
			Message: ve.Message,
			Kind:    ErrorValidation,
		})
	}
	if !p.config.StrictValidation {
		b.AddItem(item)
	}
}

// buildItem normalizes rec into a candidate item. Value problems that do not
// break a rule (truncation, unparseable numbers, price mismatch) become warnings.
func (p *DataProcessor) buildItem(rec RawRecord, line int, labels map[string]string, b *ResultBuilder) BOQItem {
	item := BOQItem{
		LineNumber: line,
		RawData:    maps.Clone(rec),
	}

	limit := func(field, v string) string {
		cut, truncated := truncateField(field, v)
		if truncated {
			b.AddWarning(ParseWarning{
				Row:     line,
				Column:  columnLabel(labels, field),
				Value:   v,
				Message: fmt.Sprintf("%s exceeds %d characters and was truncated", field, FieldLimit(field)),
				Kind:    WarningFormat,
			})
		}
		return cut
	}

	text := func(field string) string {
		v, ok := CleanText(rec[field])
		if !ok {
			return ""
		}
		return limit(field, v)
	}

	number := func(field string) (float64, bool) {
		raw := rec[field]
		if raw == "" {
			return 0, false
		}
		v, ok := p.parseNumber(raw)
		if !ok {
			b.AddWarning(ParseWarning{
				Row:     line,
				Column:  columnLabel(labels, field),
				Value:   raw,
				Message: fmt.Sprintf("%s %q is not a number", field, raw),
				Kind:    WarningFormat,
			})
		}
		return v, ok
	}

	item.ItemCode = text(FieldItemCode)
	item.Description = text(FieldDescription)
	item.Phase = text(FieldPhase)
	item.Task = text(FieldTask)
	item.Site = text(FieldSite)
	item.Category = text(FieldCategory)
	item.Subcategory = text(FieldSubcategory)
	item.Vendor = text(FieldVendor)
	item.Remarks = text(FieldRemarks)

	if unit := CanonicalUnit(rec[FieldUOM]); unit != "" {
		item.UOM = limit(FieldUOM, unit)
	}

	if v, ok := number(FieldQuantity); ok {
		item.Quantity = v
	}
	if v, ok := number(FieldUnitPrice); ok {
		item.UnitPrice = &v
	}
	if v, ok := number(FieldTotalPrice); ok {
		item.TotalPrice = &v
	}

	if !checkPriceConsistency(item) {
		expected := item.Quantity * *item.UnitPrice
		b.AddWarning(ParseWarning{
			Row:     line,
			Column:  columnLabel(labels, FieldTotalPrice),
			Value:   formatValue(*item.TotalPrice),
			Message: fmt.Sprintf("quantity x unit price is %s, total price differs by more than %.0f%%", formatValue(expected), priceTolerance*100),
			Kind:    WarningRange,
		})
	}

	return item
}

// parseNumber reads a numeric cell. Spreadsheet cells in plain machine
// notation ("1234.56") are typed numbers and ignore the locale.
func (p *DataProcessor) parseNumber(raw string) (float64, bool) {
	if p.format == FormatSpreadsheet {
		if v, ok := parseMachineNumber(raw); ok {
			return v, true
		}
	}
	return ParseNumber(raw, p.config.Locale)
}

// columnLabel returns the source header for field, or the field name itself.
func columnLabel(labels map[string]string, field string) string {
	if label, ok := labels[field]; ok {
		return label
	}
	return field
}
