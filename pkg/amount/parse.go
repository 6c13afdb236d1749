// Package amount parses free-text monetary values and decides whether a
// parsed number is plausibly a tax bill rather than an assessed value.
package amount

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

var (
	dollarRe = regexp.MustCompile(`\$[\d,]+(?:\.\d+)?`)
	keepRe   = regexp.MustCompile(`[^\d.,\-]`)
)

// Parse converts free-text money ("$1,234.56", "(500.00)") into a number.
// The second return is false when the text is empty or non-numeric; callers
// must treat that as "field not found", not as an error.
func Parse(text string) (float64, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false
	}

	// Accounting notation: parentheses mean negative.
	negative := strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")")
	if negative {
		trimmed = trimmed[1 : len(trimmed)-1]
	}

	cleaned := keepRe.ReplaceAllString(trimmed, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, false
	}

	// Some sites render totals like "1.234.56"; keep only the last dot as
	// the decimal point.
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// Dollars returns every dollar-sign amount found in text, in page order,
// parsed to numbers. Unparseable matches are dropped.
func Dollars(text string) []float64 {
	matches := dollarRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	amounts := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, ok := Parse(m); ok {
			amounts = append(amounts, v)
		}
	}
	return amounts
}

// ParseDate normalizes a free-text date to YYYY-MM-DD. County sites emit
// every format imaginable; when nothing parses the trimmed input is returned
// unchanged so the raw text is still visible downstream.
func ParseDate(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	t, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return trimmed
	}
	return t.Format("2006-01-02")
}
