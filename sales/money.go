package sales

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS - Fixed-point decimal, 4 fractional digits
// =============================================================================
// All monetary columns carry exactly 4 decimal places. Rounding is half-up
// and happens once, at the point a derived amount is produced (commission
// amounts, report totals) - never on stored inputs.

// MoneyPlaces is the fixed-point precision of every monetary value.
const MoneyPlaces = 4

// Round4 rounds to 4 decimal places, half-up.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// MustDecimal parses a decimal literal, panicking on malformed input.
// Intended for constants and tests, not for user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("sales: invalid decimal literal %q: %v", s, err))
	}
	return d
}

// ValidRate reports whether a commission rate sits inside the allowed
// [0, 0.05] band. Percentages are stored as decimals in [0,1], never as
// integers 0-100.
func ValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(MustDecimal("0.05"))
}

// SumDecimals adds a slice of decimals without intermediate rounding.
func SumDecimals(ds []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}
