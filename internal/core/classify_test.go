package core

import "testing"

func TestIsEmptyRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  RawRecord
		want bool
	}{
		{"nothing", RawRecord{}, true},
		{"only optional fields", RawRecord{FieldRemarks: "see drawing", FieldSite: "Block A"}, true},
		{"description", RawRecord{FieldDescription: "Cable"}, false},
		{"item code", RawRecord{FieldItemCode: "C-01"}, false},
		{"quantity", RawRecord{FieldQuantity: "5"}, false},
		{"uom", RawRecord{FieldUOM: "m"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmptyRecord(tt.rec); got != tt.want {
				t.Errorf("IsEmptyRecord(%v) = %v, want %v", tt.rec, got, tt.want)
			}
		})
	}
}

func TestIsSummaryRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  RawRecord
		want bool
	}{
		{"grand total", RawRecord{FieldDescription: "Grand Total", FieldTotalPrice: "12500"}, true},
		{"subtotal", RawRecord{FieldDescription: "Sub-total Section 2"}, true},
		{"summary", RawRecord{FieldDescription: "Summary of works"}, true},
		{"total with quantity is an item", RawRecord{FieldDescription: "Total station survey", FieldQuantity: "2"}, false},
		{"total with uom is an item", RawRecord{FieldDescription: "Total length of cable", FieldUOM: "m"}, false},
		{"incomplete row mentioning total", RawRecord{FieldDescription: "Total Length of Cable"}, true},
		{"ordinary item", RawRecord{FieldDescription: "Cable"}, false},
		{"no description", RawRecord{FieldTotalPrice: "100"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSummaryRecord(tt.rec); got != tt.want {
				t.Errorf("IsSummaryRecord(%v) = %v, want %v", tt.rec, got, tt.want)
			}
		})
	}
}

func TestIsHeaderLikeRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  RawRecord
		want bool
	}{
		{
			name: "repeated header",
			rec: RawRecord{
				FieldItemCode:    "Item",
				FieldDescription: "Description",
				FieldQuantity:    "Quantity",
				FieldUOM:         "Unit",
			},
			want: true,
		},
		{
			name: "two keyword cells",
			rec:  RawRecord{FieldDescription: "Description", FieldUOM: "Unit"},
			want: false,
		},
		{
			name: "data row that mentions keywords",
			rec: RawRecord{
				FieldItemCode:    "ITEM-7",
				FieldDescription: "Site office unit",
				FieldQuantity:    "1",
				FieldUOM:         "unit",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHeaderLikeRecord(tt.rec); got != tt.want {
				t.Errorf("IsHeaderLikeRecord(%v) = %v, want %v", tt.rec, got, tt.want)
			}
		})
	}
}

func TestIsHeaderCandidate(t *testing.T) {
	if !IsHeaderCandidate(Row{"Item", "Description", "Qty", "UOM"}) {
		t.Error("IsHeaderCandidate(standard header) = false, want true")
	}
	if IsHeaderCandidate(Row{"1", "Cable", "100", "m"}) {
		t.Error("IsHeaderCandidate(data row) = true, want false")
	}
	if IsHeaderCandidate(Row{"", "", ""}) {
		t.Error("IsHeaderCandidate(blank row) = true, want false")
	}
}
