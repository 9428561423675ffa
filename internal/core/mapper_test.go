package core

import (
	"reflect"
	"testing"
)

func TestDetectHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		cfg  ParseConfig
		grid RawGrid
		want int
	}{
		{
			name: "header on first row",
			cfg:  DefaultParseConfig(),
			grid: RawGrid{
				{"Item", "Description", "Qty", "UOM"},
				{"1", "Cable", "100", "m"},
			},
			want: 0,
		},
		{
			name: "title rows above header",
			cfg:  DefaultParseConfig(),
			grid: RawGrid{
				{"Project: Substation 4"},
				{"Bill of Quantities", "Rev B"},
				{},
				{"S/N", "Item Code", "Description", "Unit", "Quantity", "Rate", "Amount"},
				{"1", "C-01", "Cable", "m", "100", "5", "500"},
			},
			want: 3,
		},
		{
			name: "no match falls back to configured row",
			cfg:  ParseConfig{HeaderRow: 1, AutoDetectHeader: true},
			grid: RawGrid{
				{"a", "b"},
				{"foo", "bar", "baz"},
				{"1", "2", "3"},
			},
			want: 1,
		},
		{
			name: "header beyond the search window is not found",
			cfg:  DefaultParseConfig(),
			grid: append(make(RawGrid, HeaderSearchRows), Row{"Item", "Description", "Qty", "UOM"}),
			want: 0,
		},
		{
			name: "auto-detect off uses configured row",
			cfg:  ParseConfig{HeaderRow: 1},
			grid: RawGrid{
				{"Item", "Description", "Qty", "UOM"},
				{"Code", "Desc", "Quantity", "Unit"},
			},
			want: 1,
		},
		{
			name: "search starts at configured row",
			cfg:  ParseConfig{HeaderRow: 1, AutoDetectHeader: true},
			grid: RawGrid{
				{"Item", "Description", "Qty", "UOM"},
				{"notes"},
				{"Code", "Description", "Quantity", "Unit"},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewColumnMapper(tt.cfg)
			if got := m.DetectHeaderRow(tt.grid); got != tt.want {
				t.Errorf("DetectHeaderRow() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		label  string
		want   string
		wantOK bool
	}{
		{"Description", FieldDescription, true},
		{"Qty", FieldQuantity, true},
		{"Total Qty", FieldQuantity, true},
		{"UOM", FieldUOM, true},
		{"Unit", FieldUOM, true},
		{"Unit Price", FieldUnitPrice, true},
		{"Unit Rate (R)", FieldUnitPrice, true},
		{"Rate", FieldUnitPrice, true},
		{"Total Price", FieldTotalPrice, true},
		{"Amount", FieldTotalPrice, true},
		{"Item Code", FieldItemCode, true},
		{"Item", FieldItemCode, true},
		{"Sub-Category", FieldSubcategory, true},
		{"Category", FieldCategory, true},
		{"Location", FieldSite, true},
		{"Supplier", FieldVendor, true},
		{"Notes", FieldRemarks, true},
		{"Stage", FieldPhase, true},
		{"Activity", FieldTask, true},
		{"S/N", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := MatchKeyword(tt.label)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchKeyword(%q) = (%q, %v), want (%q, %v)", tt.label, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMatchOverride(t *testing.T) {
	cfg := DefaultParseConfig()
	cfg.ColumnOverrides = map[string]string{
		"Bezeichnung": FieldDescription,
		" Menge ":     FieldQuantity,
		"Ignore Me":   "",
	}
	m := NewColumnMapper(cfg)

	tests := []struct {
		label  string
		want   string
		wantOK bool
	}{
		{"Bezeichnung", FieldDescription, true},
		{"bezeichnung", FieldDescription, true},
		{"Menge", FieldQuantity, true},
		{"ignore me", "", true},
		{"Einheit", "", false},
	}

	for _, tt := range tests {
		got, ok := m.MatchOverride(tt.label)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("MatchOverride(%q) = (%q, %v), want (%q, %v)", tt.label, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMapColumns(t *testing.T) {
	t.Run("keyword mapping", func(t *testing.T) {
		m := NewColumnMapper(DefaultParseConfig())
		got := m.MapColumns(Row{"Item", "Description", "Qty", "UOM", "S/N"})

		want := []ColumnMapping{
			{Index: 0, SourceLabel: "Item", TargetField: FieldItemCode, Required: false, Source: MappedByKeyword},
			{Index: 1, SourceLabel: "Description", TargetField: FieldDescription, Required: true, Source: MappedByKeyword},
			{Index: 2, SourceLabel: "Qty", TargetField: FieldQuantity, Required: true, Source: MappedByKeyword},
			{Index: 3, SourceLabel: "UOM", TargetField: FieldUOM, Required: true, Source: MappedByKeyword},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("MapColumns() =\n%+v\nwant\n%+v", got, want)
		}
	})

	t.Run("override wins over keyword", func(t *testing.T) {
		cfg := DefaultParseConfig()
		cfg.ColumnOverrides = map[string]string{"Total": FieldQuantity}
		m := NewColumnMapper(cfg)

		got := m.MapColumns(Row{"Description", "Total", "Unit"})
		if len(got) != 3 {
			t.Fatalf("len(MapColumns()) = %d, want 3", len(got))
		}
		if got[1].TargetField != FieldQuantity || got[1].Source != MappedByOverride {
			t.Errorf("Total mapped to %q via %s, want %q via override", got[1].TargetField, got[1].Source, FieldQuantity)
		}
	})

	t.Run("override to empty drops column", func(t *testing.T) {
		cfg := DefaultParseConfig()
		cfg.ColumnOverrides = map[string]string{"Notes": ""}
		got := NewColumnMapper(cfg).MapColumns(Row{"Description", "Notes"})
		if len(got) != 1 || got[0].TargetField != FieldDescription {
			t.Errorf("MapColumns() = %+v, want only description", got)
		}
	})

	t.Run("first column wins a duplicate field", func(t *testing.T) {
		got := NewColumnMapper(DefaultParseConfig()).MapColumns(Row{"Description", "Details", "Qty"})
		if len(got) != 2 {
			t.Fatalf("len(MapColumns()) = %d, want 2", len(got))
		}
		if got[0].Index != 0 || got[1].TargetField != FieldQuantity {
			t.Errorf("MapColumns() = %+v", got)
		}
	})

	t.Run("multi-line header labels are cleaned", func(t *testing.T) {
		got := NewColumnMapper(DefaultParseConfig()).MapColumns(Row{"Unit\nPrice"})
		if len(got) != 1 || got[0].SourceLabel != "Unit Price" || got[0].TargetField != FieldUnitPrice {
			t.Errorf("MapColumns() = %+v", got)
		}
	})
}

func TestToRawRecord(t *testing.T) {
	mappings := []ColumnMapping{
		{Index: 0, TargetField: FieldDescription},
		{Index: 2, TargetField: FieldQuantity},
		{Index: 5, TargetField: FieldUOM},
	}

	got := ToRawRecord(Row{" Cable ", "ignored", "100", "x"}, mappings)
	want := RawRecord{FieldDescription: "Cable", FieldQuantity: "100"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToRawRecord() = %v, want %v", got, want)
	}

	if rec := ToRawRecord(Row{"", "  ", ""}, mappings); len(rec) != 0 {
		t.Errorf("ToRawRecord(blank) = %v, want empty", rec)
	}
}

func TestMissingRequiredFields(t *testing.T) {
	got := MissingRequiredFields([]ColumnMapping{{TargetField: FieldDescription}})
	want := []string{FieldUOM, FieldQuantity}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingRequiredFields() = %v, want %v", got, want)
	}
	if got := MissingRequiredFields([]ColumnMapping{
		{TargetField: FieldDescription}, {TargetField: FieldUOM}, {TargetField: FieldQuantity},
	}); got != nil {
		t.Errorf("MissingRequiredFields(all) = %v, want nil", got)
	}
}

func TestFieldNames(t *testing.T) {
	for _, f := range []string{FieldDescription, FieldUOM, FieldQuantity} {
		if !IsRequiredField(f) || !IsTargetField(f) {
			t.Errorf("%s should be a required target field", f)
		}
	}
	if IsRequiredField(FieldUnitPrice) {
		t.Error("unitPrice should be optional")
	}
	if IsTargetField(FieldLineNumber) || IsTargetField("Description") {
		t.Error("lineNumber and unknown names are not mappable")
	}
}
