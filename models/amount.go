package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point precision of the stable unit (1 unit = 1,000,000 subunits)
const TokenDecimals = 6

// FormatAmount renders subunits as a unit string, e.g. 1500000 -> "1.5"
func FormatAmount(subunits int64) string {
	return decimal.New(subunits, -TokenDecimals).String()
}

// ParseAmount converts a unit string such as "1.5" into subunits
func ParseAmount(units string) (int64, error) {
	d, err := decimal.NewFromString(units)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", units, err)
	}
	scaled := d.Shift(TokenDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimals", units, TokenDecimals)
	}
	if scaled.IsNegative() || scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("amount %q out of range", units)
	}
	return scaled.IntPart(), nil
}
