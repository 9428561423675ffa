package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/boqimport/internal/core"
)

func price(v float64) *float64 { return &v }

func sampleResult() core.ParseResult {
	return core.ParseResult{
		Success: false,
		Items: []core.BOQItem{
			{LineNumber: 2, ItemCode: "1.1", Description: "Cable", UOM: "m", Quantity: 100, UnitPrice: price(2.5)},
			{LineNumber: 3, Description: "Conduit", UOM: "m", Quantity: 40, Site: "Block A"},
			{LineNumber: 5, Description: "Tiles", UOM: "sqm", Quantity: 12.5, TotalPrice: price(300)},
		},
		Errors: []core.ParseError{
			{Row: 4, Column: "Qty", Value: "-5", Message: "quantity must be greater than zero", Kind: core.ErrorValidation},
		},
		Warnings: []core.ParseWarning{
			{Row: 3, Column: "Rate", Value: "ten", Message: "unparseable number", Kind: core.WarningFormat},
		},
		Metadata: core.Metadata{
			FileName: "boq.csv", TotalRows: 4, ProcessedRows: 4, InvalidRows: 1,
			DetectedFormat: core.FormatDelimitedText,
		},
	}
}

func TestWriteItemsArrow(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteItemsArrow(&buf, sampleResult(), 2); err != nil {
		t.Fatalf("WriteItemsArrow() error = %v", err)
	}

	rdr, err := ipc.NewReader(&buf)
	if err != nil {
		t.Fatalf("ipc.NewReader() error = %v", err)
	}
	defer rdr.Release()

	if v, ok := rdr.Schema().Metadata().GetValue("file_name"); !ok || v != "boq.csv" {
		t.Errorf("file_name metadata = %q, %v", v, ok)
	}

	var batches, rows int
	var lines []int64
	var firstUnitPriceNull, secondItemCodeNull bool
	for rdr.Next() {
		rec := rdr.Record()
		batches++
		rows += int(rec.NumRows())
		lineCol := rec.Column(colLine).(*array.Int64)
		for i := 0; i < lineCol.Len(); i++ {
			lines = append(lines, lineCol.Value(i))
		}
		if batches == 1 {
			firstUnitPriceNull = rec.Column(colUnitPrice).IsNull(0)
			secondItemCodeNull = rec.Column(colItemCode).IsNull(1)
			if got := rec.Column(colDescription).(*array.String).Value(0); got != "Cable" {
				t.Errorf("description[0] = %q, want Cable", got)
			}
		}
	}
	if err := rdr.Err(); err != nil {
		t.Fatalf("reader error = %v", err)
	}

	if batches != 2 || rows != 3 {
		t.Errorf("batches = %d, rows = %d, want 2 and 3", batches, rows)
	}
	want := []int64{2, 3, 5}
	for i := range want {
		if i >= len(lines) || lines[i] != want[i] {
			t.Fatalf("line numbers = %v, want %v", lines, want)
		}
	}
	if firstUnitPriceNull {
		t.Error("unit price of the first item should be set")
	}
	if !secondItemCodeNull {
		t.Error("missing item code should be null")
	}
}

func TestWriteItemsArrow_NoItems(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteItemsArrow(&buf, core.ParseResult{}, 0); err != nil {
		t.Fatalf("WriteItemsArrow() error = %v", err)
	}

	rdr, err := ipc.NewReader(&buf)
	if err != nil {
		t.Fatalf("ipc.NewReader() error = %v", err)
	}
	defer rdr.Release()

	if got := rdr.Schema().NumFields(); got != ItemSchema.NumFields() {
		t.Errorf("fields = %d, want %d", got, ItemSchema.NumFields())
	}
	if rdr.Next() {
		t.Error("expected no record batches")
	}
}

func TestErrorReportXLSX(t *testing.T) {
	data, err := ErrorReportXLSX(sampleResult())
	if err != nil {
		t.Fatalf("ErrorReportXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != ErrorsSheet {
		t.Fatalf("sheets = %v", sheets)
	}

	rows, err := f.GetRows(ErrorsSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("error rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "Row #" {
		t.Errorf("header = %v", rows[0])
	}
	got := rows[1]
	if got[0] != "4" || got[1] != "Qty" || got[2] != "validation" || got[3] != "-5" || got[5] != "VAL001" {
		t.Errorf("error row = %v", got)
	}

	warnings, _ := f.GetRows(WarningsSheet)
	if len(warnings) != 2 || warnings[1][4] != "unparseable number" {
		t.Errorf("warning rows = %v", warnings)
	}

	files, _ := f.GetCellValue(SummarySheet, "B1")
	if files != "boq.csv" {
		t.Errorf("summary file = %q", files)
	}
}

func TestWriteErrorReportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorReportCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteErrorReportCSV() error = %v", err)
	}

	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	if recs[0][0] != "Severity" || recs[0][1] != "Row #" {
		t.Errorf("header = %v", recs[0])
	}
	if recs[1][0] != "error" || recs[1][2] != "Qty" || recs[1][6] != "VAL001" {
		t.Errorf("error record = %v", recs[1])
	}
	if recs[2][0] != "warning" || recs[2][6] != "" {
		t.Errorf("warning record = %v", recs[2])
	}
}
