// Package core provides amount parsing and display utilities.
//
// Amounts are carried as decimal.Decimal so sums and percentages stay exact.
package core

import (
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to a decimal.Decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and ignores
// surrounding whitespace. A comma is read as a decimal separator only when one
// or two digits follow it, or three digits follow a zero integer part; anything
// else ("1,234") looks like a thousands group and is rejected. Blank,
// non-numeric, NaN and infinite inputs are rejected. Negative values are
// accepted; callers enforce sign constraints.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount(" 12,5 ") -> 12.5, nil
//	ParseAmount("0,234")  -> 0.234, nil
//	ParseAmount("1,234")  -> 0, ErrInvalidAmount
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		if !decimalComma(s) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// decimalComma reports whether the single comma in s separates decimals
// rather than a thousands group.
func decimalComma(s string) bool {
	whole, frac, _ := strings.Cut(s, ",")
	whole = strings.TrimLeft(whole, "+-")
	switch len(frac) {
	case 1, 2:
		return true
	case 3:
		return whole == "" || whole == "0"
	default:
		return false
	}
}

// Percent returns part / whole × 100. The caller guarantees whole is non-zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	return part.Mul(hundred).Div(whole)
}

// FormatMoney renders an amount in the given ISO 4217 currency, e.g. "€1,234.50".
// Unknown currency codes fall back to a plain two-decimal rendering.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
