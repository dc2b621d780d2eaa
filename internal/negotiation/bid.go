package negotiation

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var onePercent = decimal.RequireFromString("0.01")

// DefaultBidStep is 1% of the base price rounded to a whole currency unit, never below one unit.
func DefaultBidStep(base decimal.Decimal) decimal.Decimal {
	step := base.Mul(onePercent).Round(0)
	if step.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return step
}

// ParseAmount reads a manually edited amount, tolerating grouping separators, spaces and
// currency symbols. It reports false for anything that is not a positive number.
func ParseAmount(text string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r == ',', r == '_', r == '\'', unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
			return -1
		default:
			return 'x'
		}
	}, text)
	if cleaned == "" || strings.ContainsRune(cleaned, 'x') {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}
