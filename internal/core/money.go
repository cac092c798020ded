// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals; the only rounding in the ledger is the
// net-amount formula, which rounds to the nearest 10 currency units.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	ten     = decimal.NewFromInt(10)
)

var ErrInvalidAmount = errors.New("invalid amount")

// Bounds on user-entered amounts and rates. Trailing fractional zeros and
// leading integer zeros do not count.
const (
	MaxIntegerDigits  = 15
	MaxFractionDigits = 4
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// NetAmount computes round((amount - amount*rate/100) / 10) * 10.
//
// Rounding is half away from zero on the /10 value, so the result is always a
// multiple of 10. A rate of 0 or above 100 is accepted; the result may then be
// zero or negative.
//
// Examples:
//
//	NetAmount(3075, 3)   -> 2980 (298.275 rounds to 298)
//	NetAmount(5000, 2.5) -> 4880 (487.5 rounds to 488)
func NetAmount(amount, commissionRate decimal.Decimal) decimal.Decimal {
	commission := amount.Mul(commissionRate).Div(hundred)
	return amount.Sub(commission).Div(ten).Round(0).Mul(ten)
}

// ParseAmount converts user input into a decimal amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Blank
// input, signs other than a leading minus, exponent notation, NaN and
// infinities are rejected, as are values with more than MaxIntegerDigits
// integer digits or MaxFractionDigits decimal places. The sign is not
// checked here; positivity is a validation concern.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	if !withinDigitBounds(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func withinDigitBounds(s string) bool {
	intPart, frac, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	intPart = strings.TrimLeft(intPart, "0")
	frac = strings.TrimRight(frac, "0")
	return len(intPart) <= MaxIntegerDigits && len(frac) <= MaxFractionDigits
}

// Sum adds up a slice of amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, values...)
}
