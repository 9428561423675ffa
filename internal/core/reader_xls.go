package core

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
)

// oleMagic opens every OLE2 compound file, the container of BIFF .xls workbooks.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}

// zipMagic opens every .xlsx workbook.
var zipMagic = []byte("PK\x03\x04")

// BIFF8 sheets are at most 256 columns wide.
const xlsMaxColumns = 256

// xlsFormulaCell is what the decoder renders for a formula; the cached
// result is not exposed.
const xlsFormulaCell = "FormulaCol"

// isLegacyWorkbook reports whether data is a binary .xls workbook: it carries
// the OLE2 signature, or it is named .xls and is not a zip container.
func isLegacyWorkbook(name string, data []byte) bool {
	if bytes.HasPrefix(data, oleMagic) {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".xls") && !bytes.HasPrefix(data, zipMagic)
}

// readLegacyWorkbook returns the first sheet of a BIFF workbook. Numbers are
// rendered in machine notation; formula cells are read as blank.
func readLegacyWorkbook(data []byte) (rows [][]string, err error) {
	// The decoder panics on malformed streams.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("malformed xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, ErrNoWorksheets
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoWorksheets
	}

	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, xlsCells(row))
	}
	return rows, nil
}

// xlsRow returns row i, or nil when the sheet has no record for it.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func xlsCells(row *xls.Row) []string {
	cells := make([]string, xlsMaxColumns)
	last := -1
	for c := range cells {
		v := row.Col(c)
		if v == xlsFormulaCell {
			v = ""
		}
		cells[c] = v
		if v != "" {
			last = c
		}
	}
	return cells[:last+1]
}
