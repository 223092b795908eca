package dedupe

import (
	"math"
	"strconv"
	"strings"

	"github.com/JonMunkholm/orgenrich/internal/table"
)

// ParseAmount converts a reference amount to a number. It accepts currency
// symbols, thousands separators and accounting negatives "(123.45)".
// ok is false for null, blank and non-numeric values.
func ParseAmount(c table.Cell) (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	s := strings.TrimSpace(c.Value)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}
