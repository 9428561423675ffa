package core

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook returns an .xlsx file whose first sheet holds rows.
func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

type progressLog struct {
	events []Progress
}

func (l *progressLog) record(p Progress) { l.events = append(l.events, p) }

func (l *progressLog) percents() []int {
	out := make([]int, len(l.events))
	for i, e := range l.events {
		out[i] = e.Percent
	}
	return out
}

func TestSpreadsheetReader(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Item", "Description", "Qty", "UOM"},
		{1, "Cable", 100, "m"},
		{},
		{2, "Conduit", 12.5, "Sq.M"},
	})

	var log progressLog
	grid, err := SpreadsheetReader{}.Read(NewBytesInput("boq.xlsx", "", data), log.record)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	want := RawGrid{
		{"Item", "Description", "Qty", "UOM"},
		{"1", "Cable", "100", "m"},
		{"2", "Conduit", "12.5", "Sq.M"},
	}
	if !reflect.DeepEqual(grid, want) {
		t.Errorf("Read() = %v, want %v", grid, want)
	}

	if got := log.percents(); !reflect.DeepEqual(got, []int{0, 25, 50, 90, 100}) {
		t.Errorf("progress = %v, want milestones 0, 25, 50, 90, 100", got)
	}
}

func TestSpreadsheetReader_KeepsBlankCells(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Description", nil, "Qty"},
		{"Cable", nil, 3},
	})

	grid, err := SpreadsheetReader{}.Read(NewBytesInput("boq.xlsx", "", data), nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(grid) != 2 || grid[1].Cell(1) != "" || grid[1].Cell(2) != "3" {
		t.Errorf("Read() = %q", grid)
	}
}

func TestSpreadsheetReader_NotAWorkbook(t *testing.T) {
	_, err := SpreadsheetReader{}.Read(NewBytesInput("legacy.xls", "", []byte("\xd0\xcf\x11\xe0 not a zip")), nil)

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Read() error = %v, want *FormatError", err)
	}
	if fe.Format != FormatSpreadsheet || fe.Op != "decode" {
		t.Errorf("FormatError = %+v", fe)
	}
}

func TestSpreadsheetReader_LegacyWorkbook(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "table.xls"))
	if err != nil {
		t.Fatal(err)
	}

	// The second name is routed by the OLE2 signature alone.
	for _, name := range []string{"table.xls", "upload"} {
		t.Run(name, func(t *testing.T) {
			grid, err := SpreadsheetReader{}.Read(NewBytesInput(name, "", data), nil)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if len(grid) != 12 {
				t.Fatalf("rows = %d, want 12", len(grid))
			}
			if want := (Row{"Code", "Name", "Description"}); !reflect.DeepEqual(grid[0], want) {
				t.Errorf("header = %q, want %q", grid[0], want)
			}
			if want := (Row{"code11", "name11", "description11"}); !reflect.DeepEqual(grid[11], want) {
				t.Errorf("last row = %q, want %q", grid[11], want)
			}
		})
	}
}

func TestIsLegacyWorkbook(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want bool
	}{
		{"ole signature", "boq.bin", "\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1", true},
		{"xls extension", "BOQ.XLS", "plain", true},
		{"xlsx renamed to xls", "boq.xls", "PK\x03\x04rest", false},
		{"xlsx", "boq.xlsx", "PK\x03\x04rest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLegacyWorkbook(tt.file, []byte(tt.data)); got != tt.want {
				t.Errorf("isLegacyWorkbook(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestReaders_CloseInputOnFailure(t *testing.T) {
	readers := []GridReader{SpreadsheetReader{}, DelimitedReader{}}

	for _, r := range readers {
		t.Run(r.Format().String(), func(t *testing.T) {
			tc := &trackingCloser{Reader: bytes.NewReader([]byte("a,\"b\n\"c,d\"e"))}
			in := FileInput{
				Name: "bad",
				Size: 11,
				Open: func() (io.ReadCloser, error) { return tc, nil },
			}
			_, _ = r.Read(in, nil)
			if !tc.closed {
				t.Error("input was not closed")
			}
		})
	}
}

func TestReaders_OpenFailure(t *testing.T) {
	openErr := errors.New("disk gone")
	in := FileInput{
		Name: "boq.csv",
		Size: 10,
		Open: func() (io.ReadCloser, error) { return nil, openErr },
	}

	_, err := DelimitedReader{}.Read(in, nil)
	if !errors.Is(err, openErr) || !IsFormatError(err) {
		t.Errorf("Read() error = %v, want FormatError wrapping %v", err, openErr)
	}
}

func TestDelimitedReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		r     DelimitedReader
		want  RawGrid
	}{
		{
			name:  "comma",
			input: "Item,Description,Qty,UOM\n1,Cable,100,m\n",
			want:  RawGrid{{"Item", "Description", "Qty", "UOM"}, {"1", "Cable", "100", "m"}},
		},
		{
			name:  "semicolon sniffed",
			input: "Description;Qty;Unit\nKabel, 3x2.5;1.234,5;m\n",
			want:  RawGrid{{"Description", "Qty", "Unit"}, {"Kabel, 3x2.5", "1.234,5", "m"}},
		},
		{
			name:  "tab sniffed",
			input: "Description\tQty\tUnit\nCable\t5\tm\n",
			want:  RawGrid{{"Description", "Qty", "Unit"}, {"Cable", "5", "m"}},
		},
		{
			name:  "explicit pipe",
			input: "Description|Qty\nCable, red|5\n",
			r:     DelimitedReader{Delimiter: '|'},
			want:  RawGrid{{"Description", "Qty"}, {"Cable, red", "5"}},
		},
		{
			name:  "blank lines skipped, ragged rows kept",
			input: "a,b,c\n\n1,2\n\n",
			want:  RawGrid{{"a", "b", "c"}, {"1", "2"}},
		},
		{
			name:  "utf8 bom stripped",
			input: "\xef\xbb\xbfDescription,Qty\nCâble,1\n",
			want:  RawGrid{{"Description", "Qty"}, {"Câble", "1"}},
		},
		{
			name:  "windows-1252 detected",
			input: "Description,Qty\nC\xe2ble \x96 10mm\xb2,1\n",
			want:  RawGrid{{"Description", "Qty"}, {"Câble – 10mm²", "1"}},
		},
		{
			name:  "quoted newline",
			input: "Description,Qty\n\"Cable\nred\",1\n",
			want:  RawGrid{{"Description", "Qty"}, {"Cable\nred", "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := tt.r.Read(NewBytesInput("boq.csv", "text/csv", []byte(tt.input)), nil)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(grid, tt.want) {
				t.Errorf("Read() = %q, want %q", grid, tt.want)
			}
		})
	}
}

func TestDelimitedReader_ParseErrorYieldsNoGrid(t *testing.T) {
	// A quote is not a valid delimiter, so the first read fails.
	grid, err := DelimitedReader{Delimiter: '"'}.Read(NewBytesInput("boq.csv", "", []byte("a,b\n1,2\n")), nil)
	if err == nil {
		t.Fatal("Read() error = nil, want error")
	}
	if grid != nil {
		t.Errorf("Read() grid = %v, want nil", grid)
	}
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Format != FormatDelimitedText {
		t.Errorf("Read() error = %v, want delimited FormatError", err)
	}
}

func TestDelimitedReader_Progress(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("Description,Qty,Unit\n")
	for range 5000 {
		buf.WriteString("Galvanised steel cable tray 300mm,12.5,m\n")
	}

	var log progressLog
	_, err := DelimitedReader{}.Read(NewBytesInput("big.csv", "", buf.Bytes()), log.record)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	pcts := log.percents()
	if len(pcts) < 3 {
		t.Fatalf("got %d progress events, want several", len(pcts))
	}
	if last := pcts[len(pcts)-1]; last != 100 {
		t.Errorf("last progress = %d, want 100", last)
	}
	for i, p := range pcts[:len(pcts)-1] {
		if p >= 100 {
			t.Errorf("progress[%d] = %d before completion, want < 100", i, p)
		}
		if i > 0 && p < pcts[i-1] {
			t.Errorf("progress went backwards: %v", pcts)
			break
		}
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"semicolon with decimal commas", "a;b;c\n1,5;2,5;3\n4;5;6\n", ';'},
		{"tab", "a\tb\n1\t2\n", '\t'},
		{"pipe", "a|b|c\n1|2|3\n", '|'},
		{"single column falls back to comma", "a\nb\n", ','},
		{"empty", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffDelimiter([]byte(tt.sample), true); got != tt.want {
				t.Errorf("SniffDelimiter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniffEncoding(t *testing.T) {
	if got := sniffEncoding([]byte("plain ascii"), true); got != EncodingUTF8 {
		t.Errorf("ascii = %s", got)
	}
	if got := sniffEncoding([]byte("caf\xc3\xa9"), true); got != EncodingUTF8 {
		t.Errorf("utf-8 = %s", got)
	}
	if got := sniffEncoding([]byte("caf\xe9 au lait"), true); got != EncodingWindows1252 {
		t.Errorf("latin = %s", got)
	}
	// A sample cut in the middle of a multi-byte rune is still UTF-8.
	if got := sniffEncoding([]byte("caf\xc3"), false); got != EncodingUTF8 {
		t.Errorf("truncated utf-8 = %s", got)
	}
}
