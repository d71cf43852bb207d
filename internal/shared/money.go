package shared

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a monetary value for display: "R$ 1.234,56".
// Network payloads always carry plain dot-decimal numbers; this
// formatting exists only at the presentation boundary.
func FormatBRL(v float64) string {
	return brlPrinter.Sprintf("R$ %v", number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2)))
}

// ParseBRL reads a pt-BR formatted monetary string ("1.234,56", with or
// without the R$ prefix) into a float. Malformed input coerces to zero,
// matching the tolerance of the counter forms.
func ParseBRL(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Round2 rounds a monetary value to two decimal places for wire and
// storage. Intermediate pricing math keeps full precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
