package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/boqimport/internal/core"
)

// Sheet names of the XLSX error report.
const (
	ErrorsSheet   = "Errors"
	WarningsSheet = "Warnings"
	SummarySheet  = "Summary"
)

var issueHeaders = []string{"Row #", "Column", "Kind", "Value", "Message", "Code", "Action"}

// reportRow is one error or warning flattened for a report.
type reportRow struct {
	row     int
	column  string
	kind    string
	value   string
	message string
	code    string
	action  string
}

func errorReportRows(errs []core.ParseError) []reportRow {
	rows := make([]reportRow, len(errs))
	for i, e := range errs {
		um := core.MapMessage(e.Message)
		rows[i] = reportRow{e.Row, e.Column, string(e.Kind), e.Value, e.Message, um.Code, um.Action}
	}
	return rows
}

func warningReportRows(warnings []core.ParseWarning) []reportRow {
	rows := make([]reportRow, len(warnings))
	for i, w := range warnings {
		rows[i] = reportRow{row: w.Row, column: w.Column, kind: string(w.Kind), value: w.Value, message: w.Message}
	}
	return rows
}

func (r reportRow) cells() []any {
	return []any{r.row, r.column, r.kind, r.value, r.message, r.code, r.action}
}

// ErrorReportXLSX builds a workbook with the run's errors, warnings and a
// summary sheet.
func ErrorReportXLSX(r core.ParseResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ErrorsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(WarningsSheet); err != nil {
		return nil, fmt.Errorf("add warnings sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("add summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DC2626"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeIssueSheet(f, ErrorsSheet, headerStyle, errorReportRows(r.Errors)); err != nil {
		return nil, err
	}
	if err := writeIssueSheet(f, WarningsSheet, headerStyle, warningReportRows(r.Warnings)); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, r); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write error report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeIssueSheet(f *excelize.File, sheet string, headerStyle int, rows []reportRow) error {
	header := make([]any, len(issueHeaders))
	for i, h := range issueHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(issueHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	widths := []float64{8, 18, 12, 22, 55, 10, 45}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	for i, r := range rows {
		cells := r.cells()
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, r core.ParseResult) error {
	m := r.Metadata
	rates := core.ComputeRates(r)
	lines := [][]any{
		{"File", m.FileName},
		{"Format", m.DetectedFormat.String()},
		{"Success", r.Success},
		{"Header row", m.HeaderRow + 1},
		{"Total rows", m.TotalRows},
		{"Processed rows", m.ProcessedRows},
		{"Skipped rows", m.SkippedRows},
		{"Invalid rows", m.InvalidRows},
		{"Items", len(r.Items)},
		{"Errors", len(r.Errors)},
		{"Warnings", len(r.Warnings)},
		{"Success rate", rates.Success},
		{"Processing time (ms)", m.ProcessingTimeMs},
	}
	for i, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	f.SetColWidth(SummarySheet, "A", "A", 22)
	f.SetColWidth(SummarySheet, "B", "B", 40)
	return nil
}

func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}

// WriteErrorReportCSV writes errors then warnings to w as CSV, one issue per
// line, with a leading severity column.
func WriteErrorReportCSV(w io.Writer, r core.ParseResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Severity"}, issueHeaders...)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	write := func(severity string, rows []reportRow) error {
		for _, row := range rows {
			rec := []string{
				severity, strconv.Itoa(row.row), row.column, row.kind,
				row.value, row.message, row.code, row.action,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		return nil
	}
	if err := write("error", errorReportRows(r.Errors)); err != nil {
		return err
	}
	if err := write("warning", warningReportRows(r.Warnings)); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
