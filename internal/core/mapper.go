package core

// mapper.go discovers the header row and binds source columns to item fields.
//
// Mapping runs as explicit passes, each usable on its own:
//  1. MatchOverride: a configured source label -> field override
//  2. MatchKeyword: longest keyword contained in the label
//  3. no match: the column is dropped
//
// The first column that resolves to a field keeps it; later columns that
// resolve to the same field are dropped.

import (
	"slices"
	"strings"
)

// HeaderSearchRows is how many rows DetectHeaderRow scans.
const HeaderSearchRows = 10

type keywordField struct {
	keyword string
	field   string
}

// fieldKeywords is ordered: on equal keyword length the earlier entry wins.
var fieldKeywords = []keywordField{
	{"item", FieldItemCode},
	{"code", FieldItemCode},
	{"item code", FieldItemCode},
	{"item no", FieldItemCode},
	{"sku", FieldItemCode},
	{"part no", FieldItemCode},

	{"description", FieldDescription},
	{"desc", FieldDescription},
	{"particulars", FieldDescription},
	{"details", FieldDescription},

	{"qty", FieldQuantity},
	{"quantity", FieldQuantity},
	{"total qty", FieldQuantity},
	{"total quantity", FieldQuantity},

	{"uom", FieldUOM},
	{"unit", FieldUOM},
	{"units", FieldUOM},
	{"unit of measure", FieldUOM},

	{"rate", FieldUnitPrice},
	{"price", FieldUnitPrice},
	{"unit price", FieldUnitPrice},
	{"unit cost", FieldUnitPrice},
	{"unit rate", FieldUnitPrice},

	{"total", FieldTotalPrice},
	{"amount", FieldTotalPrice},
	{"total price", FieldTotalPrice},
	{"value", FieldTotalPrice},

	{"phase", FieldPhase},
	{"stage", FieldPhase},

	{"task", FieldTask},
	{"activity", FieldTask},

	{"site", FieldSite},
	{"location", FieldSite},
	{"area", FieldSite},

	{"category", FieldCategory},
	{"type", FieldCategory},

	{"subcategory", FieldSubcategory},
	{"sub category", FieldSubcategory},
	{"sub-category", FieldSubcategory},

	{"vendor", FieldVendor},
	{"supplier", FieldVendor},
	{"manufacturer", FieldVendor},

	{"remarks", FieldRemarks},
	{"notes", FieldRemarks},
	{"comments", FieldRemarks},
}

// ColumnMapper finds the header row of a grid and maps its columns.
// A mapper is built for one run and holds no state beyond its configuration.
type ColumnMapper struct {
	headerRow  int
	autoDetect bool
	overrides  map[string]string // exact label -> field
	folded     map[string]string // lower-cased label -> field
}

// NewColumnMapper creates a mapper for cfg.
func NewColumnMapper(cfg ParseConfig) *ColumnMapper {
	m := &ColumnMapper{
		headerRow:  max(cfg.HeaderRow, 0),
		autoDetect: cfg.AutoDetectHeader,
		overrides:  make(map[string]string, len(cfg.ColumnOverrides)),
		folded:     make(map[string]string, len(cfg.ColumnOverrides)),
	}

	// Sorted so that labels differing only in case resolve deterministically.
	labels := make([]string, 0, len(cfg.ColumnOverrides))
	for label := range cfg.ColumnOverrides {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	for _, label := range labels {
		field := cfg.ColumnOverrides[label]
		key := strings.TrimSpace(label)
		m.overrides[key] = field
		lower := strings.ToLower(key)
		if _, ok := m.folded[lower]; !ok {
			m.folded[lower] = field
		}
	}
	return m
}

// DetectHeaderRow returns the index of the header row. With auto-detection it
// scans up to HeaderSearchRows rows from the configured start and returns the
// first row with enough header keywords. Without a match, or with
// auto-detection off, the configured row is returned.
func (m *ColumnMapper) DetectHeaderRow(grid RawGrid) int {
	if !m.autoDetect {
		return m.headerRow
	}
	end := min(m.headerRow+HeaderSearchRows, len(grid))
	for i := m.headerRow; i < end; i++ {
		if IsHeaderCandidate(grid[i]) {
			return i
		}
	}
	return m.headerRow
}

// MatchOverride looks label up in the override table. An exact match is
// preferred over a case-insensitive one. An override to "" drops the column.
func (m *ColumnMapper) MatchOverride(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if field, ok := m.overrides[label]; ok {
		return field, true
	}
	field, ok := m.folded[strings.ToLower(label)]
	return field, ok
}

// MatchKeyword returns the field whose keyword is the longest substring of label.
func MatchKeyword(label string) (string, bool) {
	label = strings.ToLower(label)
	best, bestLen := "", 0
	for _, kf := range fieldKeywords {
		if len(kf.keyword) > bestLen && strings.Contains(label, kf.keyword) {
			best, bestLen = kf.field, len(kf.keyword)
		}
	}
	return best, bestLen > 0
}

// MapColumns maps each header cell to a target field. Columns that match
// nothing are left out of the result.
func (m *ColumnMapper) MapColumns(header Row) []ColumnMapping {
	var mappings []ColumnMapping
	taken := make(map[string]bool)

	for i, cell := range header {
		label, ok := CleanText(cell)
		if !ok {
			continue
		}

		source := MappedByOverride
		field, ok := m.MatchOverride(label)
		if !ok {
			source = MappedByKeyword
			field, ok = MatchKeyword(label)
		}
		if !ok || field == "" || taken[field] {
			continue
		}

		taken[field] = true
		mappings = append(mappings, ColumnMapping{
			Index:       i,
			SourceLabel: label,
			TargetField: field,
			Required:    IsRequiredField(field),
			Source:      source,
		})
	}
	return mappings
}

// ToRawRecord applies mappings to row. Only non-blank cells are included.
func ToRawRecord(row Row, mappings []ColumnMapping) RawRecord {
	rec := make(RawRecord, len(mappings))
	for _, cm := range mappings {
		v := strings.TrimSpace(row.Cell(cm.Index))
		if v == "" {
			continue
		}
		rec[cm.TargetField] = v
	}
	return rec
}
