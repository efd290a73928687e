package codec

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses an arbitrary-precision decimal. The scale of the input
// is kept, so "100.50" formats back as "100.50".
func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// FormatDecimal renders d with exactly as many fractional digits as its scale.
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
