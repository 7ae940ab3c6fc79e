package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Textual shapes that count as date-like data when scanning for the
// header/data boundary.
var dataDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}$`),
	regexp.MustCompile(`^\d{4}[-/.]\d{1,2}[-/.]\d{1,2}$`),
	regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.]\d{2}$`),
}

// IsDataValue reports whether a single cell looks like row data (a number
// or a date) rather than header text. Null cells are not data. Parse
// failures fall through to the next rule; the function never errors.
func IsDataValue(c Cell) bool {
	switch c.Kind {
	case CellEmpty:
		return false
	case CellNumber, CellTime:
		return true
	}

	s := strings.TrimSpace(c.Str)
	if s == "" {
		return false
	}

	// Numeric text, allowing thousands separators.
	if _, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return true
	}

	for _, p := range dataDatePatterns {
		if p.MatchString(s) {
			return true
		}
	}

	return false
}
