package core

// normalize.go provides the pure value normalizers used while building items.
//
// These functions handle the messy reality of BOQ sheets from many sources:
//   - Excel formula prefixes (="value") and stray quotes
//   - Line breaks, tabs and runs of spaces inside descriptions
//   - Unit spellings ("Sq.M", "m²", "metres", "Nos")
//   - Currency symbols, thousands separators and both decimal conventions
//
// Every normalizer reports "no value" through a boolean instead of a zero value,
// so a missing quantity stays distinguishable from a zero quantity.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// currencyCodes are stripped when they prefix or suffix a number.
var currencyCodes = []string{"zar", "usd", "eur", "gbp", "inr", "aud", "cad", "r"}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes the Excel text-formula wrapper (="...")
// - Removes one pair of matching quotes wrapping the whole value
//
// Unpaired quotes are kept: 4" and 6' are inch and foot marks.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		return strings.TrimSpace(s[2 : len(s)-1])
	}

	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		if inner := s[1 : len(s)-1]; !strings.ContainsRune(inner, rune(s[0])) {
			s = strings.TrimSpace(inner)
		}
	}
	return s
}

// CleanText trims, strips line breaks and tabs, and collapses whitespace runs.
// The second result is false when nothing is left.
func CleanText(s string) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}
	return s, true
}

// unitSynonyms maps lowercase unit spellings to their canonical form.
// Canonical forms map to themselves so canonicalization is idempotent.
var unitSynonyms = map[string]string{
	// Length
	"m": "meter", "meter": "meter", "meters": "meter", "metre": "meter", "metres": "meter",
	"mtr": "meter", "mtrs": "meter", "lm": "meter", "lin.m": "meter", "running meter": "meter",
	"km": "km", "kms": "km", "kilometer": "km", "kilometers": "km", "kilometre": "km", "kilometres": "km",

	// Area
	"sqm": "sqm", "m2": "sqm", "sq.m": "sqm", "sq.m.": "sqm", "sq m": "sqm", "sq. m": "sqm",
	"square meter": "sqm", "square meters": "sqm", "square metre": "sqm", "square metres": "sqm",

	// Volume
	"cum": "cum", "m3": "cum", "cu.m": "cum", "cu.m.": "cum", "cu m": "cum", "cu. m": "cum",
	"cubic meter": "cum", "cubic meters": "cum", "cubic metre": "cum", "cubic metres": "cum",
	"l": "liter", "lt": "liter", "ltr": "liter", "ltrs": "liter", "liter": "liter", "liters": "liter",
	"litre": "liter", "litres": "liter",

	// Count
	"each": "each", "ea": "each", "ea.": "each", "no": "each", "no.": "each", "nos": "each",
	"nos.": "each", "nr": "each", "pc": "each", "pcs": "each", "piece": "each", "pieces": "each",
	"set": "set", "sets": "set", "lot": "lot", "lots": "lot", "roll": "roll", "rolls": "roll",
	"pair": "pair", "pairs": "pair",

	// Mass
	"kg": "kg", "kgs": "kg", "kilogram": "kg", "kilograms": "kg",
	"ton": "ton", "tons": "ton", "tonne": "ton", "tonnes": "ton", "t": "ton", "mt": "ton",

	// Time
	"hour": "hour", "hours": "hour", "hr": "hour", "hrs": "hour", "h": "hour",
	"day": "day", "days": "day", "week": "week", "weeks": "week", "month": "month", "months": "month",

	// Lump sum
	"lumpsum": "lumpsum", "lump sum": "lumpsum", "ls": "lumpsum", "l.s.": "lumpsum", "l/s": "lumpsum",
}

// unitKey folds a unit spelling into the lookup key used by unitSynonyms.
// NFKC turns "m²" into "m2" and full-width letters into ASCII.
func unitKey(s string) string {
	s = norm.NFKC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CanonicalUnit returns the canonical unit for s. Unknown units come back
// cleaned but otherwise unchanged; the validator decides if they are acceptable.
func CanonicalUnit(s string) string {
	cleaned, ok := CleanText(s)
	if !ok {
		return ""
	}
	if canon, ok := unitSynonyms[unitKey(cleaned)]; ok {
		return canon
	}
	return cleaned
}

// ParseNumber converts numeric cell text to a float64 using the locale's
// separators. Handles currency symbols and codes, thousands separators, and
// accounting format (parentheses for negative). The second result is false
// when the text is empty or is not a number.
func ParseNumber(s string, loc Locale) (float64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = stripCurrency(s)

	// Spaces, non-breaking spaces and apostrophes are used as group separators.
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' || r == '’' {
			return -1
		}
		return r
	}, s)

	if loc == LocaleEuropean {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if isNegative {
		if strings.HasPrefix(s, "-") {
			return 0, false
		}
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// parseMachineNumber accepts only locale-free notation: digits, an optional
// sign, a '.' decimal point and an exponent.
func parseMachineNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// stripCurrency removes currency symbols anywhere and currency codes at either end.
func stripCurrency(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	lower := strings.ToLower(s)
	for _, code := range currencyCodes {
		if rest, ok := strings.CutPrefix(lower, code); ok && startsNumeric(rest) {
			return strings.TrimSpace(s[len(code):])
		}
		if rest, ok := strings.CutSuffix(lower, code); ok && endsNumeric(rest) {
			return strings.TrimSpace(s[:len(s)-len(code)])
		}
	}
	return s
}

func startsNumeric(s string) bool {
	s = strings.TrimLeft(s, " ")
	return s != "" && (s[0] == '-' || s[0] == '+' || s[0] == '.' || s[0] == ',' || (s[0] >= '0' && s[0] <= '9'))
}

func endsNumeric(s string) bool {
	s = strings.TrimRight(s, " ")
	return s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9'
}

// FormatNumber renders v with the locale's separators and the given number
// of decimals, e.g. 1234.5 -> "1,234.50" or "1.234,50".
func FormatNumber(v float64, loc Locale, decimals int) string {
	if decimals < 0 {
		decimals = -1
	}
	raw := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, fracPart, _ := strings.Cut(raw, ".")

	group, decimal := ",", "."
	if loc == LocaleEuropean {
		group, decimal = ".", ","
	}

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(group)
		}
		b.WriteRune(d)
	}
	if fracPart != "" {
		b.WriteString(decimal)
		b.WriteString(fracPart)
	}
	return b.String()
}

// europeanLanguages write decimals with a comma and group with a dot.
var europeanLanguages = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "nl": true, "pt": true, "da": true,
	"nb": true, "no": true, "sv": true, "fi": true, "pl": true, "cs": true, "tr": true,
	"ru": true, "id": true, "af": true, "el": true, "ro": true, "hu": true,
}

// ParseLocale accepts "standard", "european", "eu", "us" or any BCP 47 tag
// ("de-DE", "en-ZA"). Unknown input falls back to LocaleStandard.
func ParseLocale(s string) Locale {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "standard", "us", "en":
		return LocaleStandard
	case "european", "eu", "euro":
		return LocaleEuropean
	}

	tag, err := language.Parse(s)
	if err != nil {
		return LocaleStandard
	}
	base, _ := tag.Base()
	if europeanLanguages[base.String()] {
		return LocaleEuropean
	}
	return LocaleStandard
}
