package normalize

// coerce.go converts raw cell tokens into canonical typed values.
//
// These functions handle the messy reality of vendor exports:
//   - European decimal commas joined at the hip with semicolon delimiters
//   - Thousands separators and non-breaking spaces inside numbers
//   - A zoo of date layouts, day-first and month-first
//   - Excel formula prefixes (="value") and stray quotes

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates a token after separator cleanup. Matches integers,
// decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// DecimalConvention describes how numbers are written in one file. It is
// inferred jointly with the delimiter: a semicolon-separated file uses the
// European comma decimal, anything else uses the point decimal. The joint
// rule removes the ambiguity between thousands separators and decimals.
type DecimalConvention struct {
	Name      string
	Decimal   rune
	Thousands rune
}

var (
	// DecimalComma is the European convention (1.234,56).
	DecimalComma = DecimalConvention{Name: "comma", Decimal: ',', Thousands: '.'}
	// DecimalPoint is the Anglo convention (1,234.56).
	DecimalPoint = DecimalConvention{Name: "point", Decimal: '.', Thousands: ','}
)

// ConventionFor returns the decimal convention implied by a delimiter.
func ConventionFor(delimiter rune) DecimalConvention {
	if delimiter == ';' {
		return DecimalComma
	}
	return DecimalPoint
}

// dateLayouts is the ordered list of known vendor date patterns. Day-first
// layouts come before month-first: European planning tools dominate the
// observed exports. The first layout that parses every sampled value in a
// column wins for that whole column.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"01-02-2006",
	"1/2/2006",
	"20060102",
}

// CleanCell removes common export artifacts from a cell token: surrounding
// whitespace and quotes plus the Excel formula prefix (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// CoerceNumeric parses a token under the given decimal convention.
// Thousands separators are stripped, the decimal separator is canonicalized
// to '.', and the result is an int value when no decimal part was written.
func CoerceNumeric(token string, conv DecimalConvention) (Value, bool) {
	s := CleanCell(token)
	if s == "" {
		return Null, false
	}

	// Normalize space-like thousands separators first.
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	hadDecimal := strings.ContainsRune(s, conv.Decimal)
	s = strings.ReplaceAll(s, string(conv.Thousands), "")
	if conv.Decimal != '.' {
		s = strings.ReplaceAll(s, string(conv.Decimal), ".")
	}

	if !numericRegex.MatchString(s) {
		return Null, false
	}

	if !hadDecimal && !strings.ContainsAny(s, "eE.") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return IntValue(i), true
		}
		// Wider than int64; fall through to float.
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null, false
	}
	return FloatValue(f), true
}

// CoerceDate parses a token with a specific layout.
func CoerceDate(token, layout string) (Value, bool) {
	s := CleanCell(token)
	if s == "" {
		return Null, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Null, false
	}
	return DateValue(t), true
}

// detectDateLayout returns the first layout that parses every sample, or ""
// when no single layout covers the column. Per-column consistency rather
// than per-cell guessing prevents mixed day-first/month-first interpretation
// inside one table.
func detectDateLayout(samples []string) string {
	if len(samples) == 0 {
		return ""
	}
layouts:
	for _, layout := range dateLayouts {
		for _, s := range samples {
			if _, err := time.Parse(layout, s); err != nil {
				continue layouts
			}
		}
		return layout
	}
	return ""
}
