package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string supplied at the API boundary
// into minor currency units, rounding half away from zero. Parsing
// happens exactly once at entry; the integer result flows through the
// core unchanged and is never re-rounded.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, ErrInvalidAmount)
	}
	minor := d.Shift(2).Round(0)
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range: %w", s, ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}

// DisplayAmount renders minor units in display units (minor / 100) with
// two decimal places, e.g. 150 -> "1.50".
func DisplayAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
