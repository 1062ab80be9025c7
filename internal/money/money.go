// Package money holds the fixed-scale decimal helpers every ledger amount goes through.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultScale is the forex scale used when none is configured.
const DefaultScale int32 = 4

// Zero is the additive identity.
var Zero = decimal.Zero

// FromInt converts an integer amount.
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Parse reads a decimal string such as "116.00".
func Parse(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return v, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) decimal.Decimal {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Round rounds half away from zero to scale places.
func Round(v decimal.Decimal, scale int32) decimal.Decimal {
	return v.Round(scale)
}

// Compare compares a and b after rounding both to scale.
func Compare(a, b decimal.Decimal, scale int32) int {
	return a.Round(scale).Cmp(b.Round(scale))
}

// Equal reports whether a and b agree at scale.
func Equal(a, b decimal.Decimal, scale int32) bool {
	return Compare(a, b, scale) == 0
}

// IsZero reports whether v rounds to zero at scale.
func IsZero(v decimal.Decimal, scale int32) bool {
	return v.Round(scale).IsZero()
}

// Sum adds values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Percent returns v × rate / 100.
func Percent(v, rate decimal.Decimal) decimal.Decimal {
	return v.Mul(rate).Div(decimal.NewFromInt(100))
}

// Foreign converts a reporting-currency amount into the foreign currency at rate.
// A zero rate leaves the amount untouched.
func Foreign(amount, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return amount
	}
	return amount.Div(rate)
}
