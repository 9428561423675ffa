package core

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoWorksheets is returned for a workbook without any sheet.
var ErrNoWorksheets = errors.New("no worksheets found")

// SpreadsheetReader reads the first worksheet of an .xlsx workbook or a
// legacy binary .xls workbook.
type SpreadsheetReader struct{}

// Format implements GridReader.
func (SpreadsheetReader) Format() FormatKind { return FormatSpreadsheet }

// Read loads the workbook and returns the first sheet's cells as text.
// Decoding is not incremental, so progress is reported at fixed milestones.
// Rows with no non-blank cell are dropped.
func (SpreadsheetReader) Read(in FileInput, onProgress ProgressFunc) (RawGrid, error) {
	rc, err := openInput(FormatSpreadsheet, in)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	notify(onProgress, Progress{Phase: PhaseReading, Percent: 0, Message: "loading " + in.Name})

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &FormatError{Format: FormatSpreadsheet, Op: "read", Err: err}
	}
	notify(onProgress, Progress{Phase: PhaseReading, Percent: 25, Message: "decoding workbook"})

	var rows [][]string
	if isLegacyWorkbook(in.Name, data) {
		rows, err = readLegacyWorkbook(data)
	} else {
		rows, err = readWorkbook(data)
	}
	if err != nil {
		return nil, &FormatError{Format: FormatSpreadsheet, Op: "decode", Err: err}
	}
	notify(onProgress, Progress{Phase: PhaseReading, Percent: 50, Message: "extracting cells"})

	grid := make(RawGrid, 0, len(rows))
	for _, cells := range rows {
		if isBlankRow(cells) {
			continue
		}
		grid = append(grid, Row(cells))
	}
	notify(onProgress, Progress{Phase: PhaseReading, Percent: 90})

	notify(onProgress, Progress{Phase: PhaseReading, Percent: 100, RowsDone: len(grid)})
	return grid, nil
}

// readWorkbook returns the first sheet of an .xlsx workbook. Numeric cells
// keep their stored machine notation.
func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoWorksheets
	}
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func isBlankRow(cells []string) bool {
	for _, v := range cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
