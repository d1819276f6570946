package presentation

import (
	"fmt"
	"math"
	"strings"

	"EconDash/internal/domain/models"

	"github.com/shopspring/decimal"
)

// FormatValue renders v rounded to two decimals. Level values get
// thousands separators and percent values a trailing "%".
func FormatValue(v float64, percent bool) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	s := decimal.NewFromFloat(v).StringFixed(2)
	if percent {
		return s + "%"
	}
	return groupThousands(s)
}

// SummaryLine renders latest, average, min and max on one line.
func SummaryLine(s models.Summary) string {
	return fmt.Sprintf("Latest: %s, Average: %s, Min: %s, Max: %s",
		FormatValue(s.Latest, s.Percent),
		FormatValue(s.Mean, s.Percent),
		FormatValue(s.Min, s.Percent),
		FormatValue(s.Max, s.Percent),
	)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}
