package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultScale is the number of fractional digits kept by Mul and by
// divisions that have no narrower target scale.
const DefaultScale int32 = 18

// Mul multiplies a by b and truncates the result to DefaultScale.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Truncate(DefaultScale)
}

// Div divides a by b rounding toward zero at the given scale.
// b must not be zero.
func Div(a, b decimal.Decimal, scale int32) decimal.Decimal {
	q, _ := a.QuoRem(b, scale)
	return q
}

// ParseDecimal parses s and validates that it has at most digits
// fractional digits.
func ParseDecimal(s string, digits int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", s)
	}
	if !d.Equal(d.Truncate(digits)) {
		return decimal.Zero, fmt.Errorf("%s must have at most %d decimal places", s, digits)
	}
	return d, nil
}

// CheckScale reports whether d fits in digits fractional digits.
func CheckScale(d decimal.Decimal, digits int32) bool {
	return d.Equal(d.Truncate(digits))
}
