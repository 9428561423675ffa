package core

import "strings"

// headerKeywords mark a cell as a likely column label.
var headerKeywords = []string{
	"item", "code", "description", "quantity", "unit", "uom",
	"price", "total", "category", "phase", "task", "site",
}

// minHeaderHits is how many keyword cells make a row a header.
const minHeaderHits = 3

// summaryKeywords mark a description as a rollup line.
var summaryKeywords = []string{"grand total", "subtotal", "sub total", "total", "summary"}

// countHeaderKeywords counts the non-empty cells that contain a header keyword.
func countHeaderKeywords(cells []string) int {
	hits := 0
	for _, cell := range cells {
		cell = strings.ToLower(strings.TrimSpace(cell))
		if cell == "" {
			continue
		}
		for _, kw := range headerKeywords {
			if strings.Contains(cell, kw) {
				hits++
				break
			}
		}
	}
	return hits
}

// IsHeaderCandidate reports whether row looks like a column header row.
func IsHeaderCandidate(row Row) bool {
	return countHeaderKeywords(row) >= minHeaderHits
}

// IsEmptyRecord reports whether rec carries none of the identifying fields.
func IsEmptyRecord(rec RawRecord) bool {
	return !rec.Has(FieldDescription) &&
		!rec.Has(FieldItemCode) &&
		!rec.Has(FieldQuantity) &&
		!rec.Has(FieldUOM)
}

// IsHeaderLikeRecord reports whether rec repeats the column header, as happens
// when a sheet reprints its header at each page or section break. A record
// with a numeric quantity is data regardless of its wording.
func IsHeaderLikeRecord(rec RawRecord) bool {
	if _, ok := ParseNumber(rec[FieldQuantity], LocaleStandard); ok {
		return false
	}
	values := make([]string, 0, len(rec))
	for _, v := range rec {
		values = append(values, v)
	}
	return countHeaderKeywords(values) >= minHeaderHits
}

// IsSummaryRecord reports whether rec is a subtotal or total line.
// A description mentioning "total" only counts when quantity and uom are both absent.
func IsSummaryRecord(rec RawRecord) bool {
	if rec.Has(FieldQuantity) || rec.Has(FieldUOM) {
		return false
	}
	desc := strings.ToLower(rec[FieldDescription])
	if desc == "" {
		return false
	}
	for _, kw := range summaryKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// skipReason classifies rec; an empty reason means the row is data.
func skipReason(rec RawRecord) string {
	switch {
	case IsEmptyRecord(rec):
		return "empty"
	case IsSummaryRecord(rec):
		return "summary"
	case IsHeaderLikeRecord(rec):
		return "header"
	}
	return ""
}
