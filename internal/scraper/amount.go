package scraper

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount turns "20.000", "15,50" or "1.234,56" into a float. A "." or ","
// followed by exactly three digits and then a non-digit (or the end) is a
// thousands separator. Anything unparseable yields 0, which callers reject.
func ParseAmount(raw string) float64 {
	var compact strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		compact.WriteRune(r)
	}
	s := compact.String()
	if s == "" {
		return 0
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == '.' || c == ',') && isThousandsSeparator(s, i) {
			continue
		}
		b.WriteByte(c)
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(b.String(), ",", "."), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func isThousandsSeparator(s string, i int) bool {
	for j := i + 1; j <= i+3; j++ {
		if j >= len(s) || !isDigit(s[j]) {
			return false
		}
	}
	return i+4 >= len(s) || !isDigit(s[i+4])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
