package core

// validation.go provides record-level validation for candidate BOQ items.
//
// Validation happens at two levels:
//  1. Mapping validation: reports required fields that no column maps to
//  2. Item validation: checks each candidate against the BOQ item rules
//
// ValidateItem always returns every failing rule so that a report can show
// all problems with a row at once. Validation errors include the field name,
// the offending value, and a human-readable message.

import (
	"fmt"
	"math"
	"strconv"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains the result of validating an item.
type ValidationResult struct {
	Valid  bool              // True if all validations passed
	Errors []ValidationError // List of validation errors (empty if Valid)
}

func (r *ValidationResult) fail(field, value, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// ValidateItem checks item against the BOQ item rules:
// lineNumber is positive, description and uom are non-empty, quantity is
// strictly positive, and prices, when present, are non-negative.
func ValidateItem(item BOQItem) ValidationResult {
	result := ValidationResult{Valid: true}

	if item.LineNumber <= 0 {
		result.fail(FieldLineNumber, strconv.Itoa(item.LineNumber), "lineNumber must be a positive integer")
	}
	if item.Description == "" {
		result.fail(FieldDescription, "", "description is required")
	}
	if item.UOM == "" {
		result.fail(FieldUOM, "", "uom is required")
	}
	if !(item.Quantity > 0) || math.IsInf(item.Quantity, 0) {
		result.fail(FieldQuantity, formatValue(item.Quantity), "quantity must be a positive number")
	}
	if item.UnitPrice != nil && !(*item.UnitPrice >= 0) {
		result.fail(FieldUnitPrice, formatValue(*item.UnitPrice), "unitPrice must be a non-negative number")
	}
	if item.TotalPrice != nil && !(*item.TotalPrice >= 0) {
		result.fail(FieldTotalPrice, formatValue(*item.TotalPrice), "totalPrice must be a non-negative number")
	}

	return result
}

// MissingRequiredFields returns the required fields that mappings does not cover,
// in description, uom, quantity order.
func MissingRequiredFields(mappings []ColumnMapping) []string {
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		mapped[m.TargetField] = true
	}

	var missing []string
	for _, field := range []string{FieldDescription, FieldUOM, FieldQuantity} {
		if !mapped[field] {
			missing = append(missing, field)
		}
	}
	return missing
}

// fieldLimits caps the length of text fields. Fields not listed use defaultFieldLimit.
var fieldLimits = map[string]int{
	FieldDescription: 500,
	FieldItemCode:    100,
	FieldUOM:         20,
}

const defaultFieldLimit = 100

// FieldLimit returns the maximum rune length accepted for a text field.
func FieldLimit(field string) int {
	if n, ok := fieldLimits[field]; ok {
		return n
	}
	return defaultFieldLimit
}

// truncateField shortens s to the field's limit. The second result reports
// whether anything was cut.
func truncateField(field, s string) (string, bool) {
	limit := FieldLimit(field)
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}

// priceTolerance is the relative gap allowed between quantity*unitPrice and totalPrice.
const priceTolerance = 0.01

// checkPriceConsistency reports whether quantity*unitPrice agrees with
// totalPrice within priceTolerance. Items lacking any of the three always agree.
func checkPriceConsistency(item BOQItem) bool {
	if item.UnitPrice == nil || item.TotalPrice == nil || item.Quantity <= 0 {
		return true
	}
	expected := item.Quantity * *item.UnitPrice
	total := *item.TotalPrice
	if total == 0 {
		return expected == 0
	}
	return math.Abs(expected-total) <= math.Abs(total)*priceTolerance
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
