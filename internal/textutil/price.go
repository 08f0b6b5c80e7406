package textutil

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParsePrice reads a human formatted amount such as "$ 1.299.000",
// "COP 45,900.50" or "12,5". Currency symbols and spaces are ignored. When
// both '.' and ',' appear the later one is the decimal separator; a single
// separator followed by exactly three digits is read as a thousands
// separator.
func ParsePrice(text string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	raw := strings.Trim(b.String(), ".,")
	if raw == "" || raw == "-" {
		return decimal.Decimal{}, false
	}

	lastDot := strings.LastIndexByte(raw, '.')
	lastComma := strings.LastIndexByte(raw, ',')
	var cleaned string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decSep, groupSep := ".", ","
		if lastComma > lastDot {
			decSep, groupSep = ",", "."
		}
		cleaned = strings.ReplaceAll(raw, groupSep, "")
		cleaned = strings.Replace(cleaned, decSep, ".", 1)
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		idx := lastDot
		if lastComma >= 0 {
			sep, idx = ",", lastComma
		}
		if strings.Count(raw, sep) > 1 || len(raw)-idx-1 == 3 {
			cleaned = strings.ReplaceAll(raw, sep, "")
		} else {
			cleaned = strings.Replace(raw, sep, ".", 1)
		}
	default:
		cleaned = raw
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
