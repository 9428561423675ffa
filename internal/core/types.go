// Package core provides the BOQ ingestion pipeline.
// This package has no UI or storage dependencies and can be used by any frontend.
package core

import (
	"maps"
	"time"
)

// Row is one row of raw text cells. Rows may be shorter than the header;
// missing trailing cells read as empty.
type Row []string

// Cell returns the text at position i, or "" when the row is too short.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// RawGrid is the rows x columns text representation every reader produces.
type RawGrid []Row

// FormatKind identifies which reader handles a file.
type FormatKind int

const (
	FormatUnsupported FormatKind = iota
	FormatSpreadsheet
	FormatDelimitedText
)

// String returns the name used in result metadata.
func (k FormatKind) String() string {
	switch k {
	case FormatSpreadsheet:
		return "spreadsheet"
	case FormatDelimitedText:
		return "delimited_text"
	default:
		return "unsupported"
	}
}

// MarshalText lets FormatKind appear as a string in JSON.
func (k FormatKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Locale selects the decimal/thousands convention for numeric cells.
type Locale string

const (
	// LocaleStandard reads 1,234.56.
	LocaleStandard Locale = "standard"
	// LocaleEuropean reads 1.234,56.
	LocaleEuropean Locale = "european"
)

// Encoding names the text encoding of delimited input.
type Encoding string

const (
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

// DefaultMaxFileSize is the upload ceiling (50 MiB).
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// ParseConfig describes how a grid is interpreted. It is treated as a value:
// the pipeline copies it at the start of every run.
type ParseConfig struct {
	HeaderRow             int               // Start of the header search window (0-based)
	AutoDetectHeader      bool              // Scan from HeaderRow for a keyword row; false uses HeaderRow verbatim
	RowsToSkipAfterHeader int               // Rows between header and first data row
	StrictValidation      bool              // Drop records that fail validation
	Locale                Locale            // Numeric convention
	ColumnOverrides       map[string]string // Source label -> target field, applied before keyword matching
	Delimiter             rune              // 0 sniffs the delimiter
	Encoding              Encoding          // Delimited text encoding
	MaxFileSize           int64             // Size ceiling; 0 means DefaultMaxFileSize
}

// DefaultParseConfig returns the configuration used when callers supply none.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		AutoDetectHeader: true,
		StrictValidation: true,
		Locale:           LocaleStandard,
		Encoding:         EncodingAuto,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// Clone returns a copy that shares no mutable state with c.
func (c ParseConfig) Clone() ParseConfig {
	out := c
	if c.ColumnOverrides != nil {
		out.ColumnOverrides = maps.Clone(c.ColumnOverrides)
	}
	return out
}

func (c ParseConfig) maxFileSize() int64 {
	if c.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return c.MaxFileSize
}

// PartialConfig updates selected fields of a ParseConfig. Nil fields are left unchanged.
type PartialConfig struct {
	HeaderRow             *int
	AutoDetectHeader      *bool
	RowsToSkipAfterHeader *int
	StrictValidation      *bool
	Locale                *Locale
	ColumnOverrides       map[string]string // Replaces the override table when non-nil
	Delimiter             *rune
	Encoding              *Encoding
	MaxFileSize           *int64
}

// Apply returns a new configuration with p's fields applied on top of c.
func (p PartialConfig) Apply(c ParseConfig) ParseConfig {
	out := c.Clone()
	if p.HeaderRow != nil {
		out.HeaderRow = *p.HeaderRow
	}
	if p.AutoDetectHeader != nil {
		out.AutoDetectHeader = *p.AutoDetectHeader
	}
	if p.RowsToSkipAfterHeader != nil {
		out.RowsToSkipAfterHeader = *p.RowsToSkipAfterHeader
	}
	if p.StrictValidation != nil {
		out.StrictValidation = *p.StrictValidation
	}
	if p.Locale != nil {
		out.Locale = *p.Locale
	}
	if p.ColumnOverrides != nil {
		out.ColumnOverrides = maps.Clone(p.ColumnOverrides)
	}
	if p.Delimiter != nil {
		out.Delimiter = *p.Delimiter
	}
	if p.Encoding != nil {
		out.Encoding = *p.Encoding
	}
	if p.MaxFileSize != nil {
		out.MaxFileSize = *p.MaxFileSize
	}
	return out
}

// Target field names for BOQ items.
const (
	FieldItemCode    = "itemCode"
	FieldDescription = "description"
	FieldUOM         = "uom"
	FieldQuantity    = "quantity"
	FieldPhase       = "phase"
	FieldTask        = "task"
	FieldSite        = "site"
	FieldUnitPrice   = "unitPrice"
	FieldTotalPrice  = "totalPrice"
	FieldCategory    = "category"
	FieldSubcategory = "subcategory"
	FieldVendor      = "vendor"
	FieldRemarks     = "remarks"
	FieldLineNumber  = "lineNumber"
)

// IsTargetField reports whether field names a BOQ item field a column can map to.
func IsTargetField(field string) bool {
	switch field {
	case FieldItemCode, FieldDescription, FieldUOM, FieldQuantity, FieldPhase, FieldTask,
		FieldSite, FieldUnitPrice, FieldTotalPrice, FieldCategory, FieldSubcategory,
		FieldVendor, FieldRemarks:
		return true
	}
	return false
}

// IsRequiredField reports whether every BOQ item must carry field.
func IsRequiredField(field string) bool {
	switch field {
	case FieldDescription, FieldUOM, FieldQuantity:
		return true
	}
	return false
}

// MappingSource records which pass produced a ColumnMapping.
type MappingSource string

const (
	MappedByOverride MappingSource = "override"
	MappedByKeyword  MappingSource = "keyword"
)

// ColumnMapping binds one grid column to a target field.
type ColumnMapping struct {
	Index       int           `json:"index"`
	SourceLabel string        `json:"sourceLabel"`
	TargetField string        `json:"targetField"`
	Required    bool          `json:"required"`
	Source      MappingSource `json:"source"`
}

// RawRecord is the sparse field -> text view of one grid row.
type RawRecord map[string]string

// Has reports whether field carries a non-empty value.
func (r RawRecord) Has(field string) bool {
	return r[field] != ""
}

// BOQItem is one normalized Bill-of-Quantities line.
type BOQItem struct {
	LineNumber  int       `json:"lineNumber"`
	ItemCode    string    `json:"itemCode,omitempty"`
	Description string    `json:"description"`
	UOM         string    `json:"uom"`
	Quantity    float64   `json:"quantity"`
	Phase       string    `json:"phase,omitempty"`
	Task        string    `json:"task,omitempty"`
	Site        string    `json:"site,omitempty"`
	UnitPrice   *float64  `json:"unitPrice,omitempty"`
	TotalPrice  *float64  `json:"totalPrice,omitempty"`
	Category    string    `json:"category,omitempty"`
	Subcategory string    `json:"subcategory,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	Remarks     string    `json:"remarks,omitempty"`
	RawData     RawRecord `json:"rawData,omitempty"`
}

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	ErrorParsing    ErrorKind = "parsing"
	ErrorValidation ErrorKind = "validation"
	ErrorFormat     ErrorKind = "format"
)

// WarningKind classifies a ParseWarning.
type WarningKind string

const (
	WarningFormat     WarningKind = "format"
	WarningRange      WarningKind = "range"
	WarningSuggestion WarningKind = "suggestion"
)

// ParseError is a failure observed during a run. Row is 1-based; 0 means file level.
type ParseError struct {
	Row     int       `json:"row"`
	Column  string    `json:"column,omitempty"`
	Value   string    `json:"value,omitempty"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// ParseWarning is a non-fatal observation made during a run.
type ParseWarning struct {
	Row     int         `json:"row"`
	Column  string      `json:"column,omitempty"`
	Value   string      `json:"value,omitempty"`
	Message string      `json:"message"`
	Kind    WarningKind `json:"kind"`
}

// Metadata carries the counts and timing of a run.
type Metadata struct {
	FileName         string          `json:"fileName,omitempty"`
	TotalRows        int             `json:"totalRows"`
	ProcessedRows    int             `json:"processedRows"`
	SkippedRows      int             `json:"skippedRows"`
	InvalidRows      int             `json:"invalidRows"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	DetectedFormat   FormatKind      `json:"detectedFormat"`
	HeaderRow        int             `json:"headerRow"`
	Columns          []ColumnMapping `json:"columns,omitempty"`
}

// ParseResult is the final, read-only outcome of one pipeline run.
type ParseResult struct {
	Success  bool           `json:"success"`
	Items    []BOQItem      `json:"items"`
	Errors   []ParseError   `json:"errors"`
	Warnings []ParseWarning `json:"warnings"`
	Metadata Metadata       `json:"metadata"`
}

// Phase indicates the current stage of a run.
type Phase string

const (
	PhaseDetecting  Phase = "detecting"
	PhaseReading    Phase = "reading"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Progress is an advisory snapshot of a run.
type Progress struct {
	RunID     string `json:"runId,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Phase     Phase  `json:"phase"`
	Percent   int    `json:"percent"` // Overall 0-100
	RowsDone  int    `json:"rowsDone,omitempty"`
	RowsTotal int    `json:"rowsTotal,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ProgressFunc receives progress notifications. It must not block; panics are swallowed.
type ProgressFunc func(Progress)

// notify calls fn and discards any panic it raises.
func notify(fn ProgressFunc, p Progress) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(p)
}

// RunSummary is what observers see once a run has finished.
type RunSummary struct {
	RunID    string
	FileName string
	Result   ParseResult
	Duration time.Duration
}
