// Package normalize converts classified spreadsheet tables into production
// records: dates are coerced into a single day-first output form and rows
// are folded into stage-keyed records ready for persistence.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/Nav1203/plan-parser/internal/ingest"
)

// DateLayout is the single output form for every normalized date:
// dd/mm/yyyy, zero-padded, always 10 characters.
const DateLayout = "02/01/2006"

// nullDateTokens are string values treated as absent dates.
var nullDateTokens = map[string]bool{
	"nan":  true,
	"nat":  true,
	"none": true,
}

// delimiterRuns matches runs of date delimiters to rewrite as "/".
var delimiterRuns = regexp.MustCompile(`[\s.\-]+`)

// dateLayouts is the ordered list of accepted input forms. Day-first
// layouts come before month-first so ambiguous strings like 03/04/2025
// resolve to day 3, month 4. Unpadded layout codes accept both padded and
// unpadded components.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/06",
	"2006/1/2",
	"06/1/2",
	"1/2/2006",
	"1/2/06",
	"2/Jan/2006",
	"2/Jan/06",
	"Jan/2/2006",
	"Jan/2/06",
	"2/January/2006",
	"January/2/2006",
	"2006/Jan/2",
}

// Date normalizes an arbitrary cell value into DateLayout form. ok is
// false when the value is null-like or no date interpretation exists.
// The function is total: any input yields (formatted, true) or ("", false).
func Date(cell ingest.Cell) (string, bool) {
	switch cell.Kind {
	case ingest.CellEmpty:
		return "", false
	case ingest.CellTime:
		return cell.Time.Format(DateLayout), true
	default:
		return DateString(cell.String())
	}
}

// DateString normalizes a raw string: null tokens map to absent, delimiter
// runs are rewritten to "/", then the ordered layouts are attempted with a
// permissive day-first parse as the final fallback.
func DateString(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || nullDateTokens[strings.ToLower(trimmed)] {
		return "", false
	}

	candidate := delimiterRuns.ReplaceAllString(trimmed, "/")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.Format(DateLayout), true
		}
	}

	if t, ok := parseAnyDayFirst(trimmed); ok {
		return t.Format(DateLayout), true
	}
	return "", false
}

// parseAnyDayFirst runs the permissive parser over the untouched input.
// dateparse can panic on some malformed strings, so the call is isolated
// behind a recover to keep normalization total.
func parseAnyDayFirst(s string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	parsed, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
