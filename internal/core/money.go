// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents; decimal strings are converted with
// shopspring/decimal so no float rounding happens on the way in or out.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents is the largest amount a single transaction may carry,
// one billion in currency units. Sums of up to 90 million such amounts stay
// within int64.
const MaxAmountCents int64 = 100_000_000_000

var maxCents = decimal.NewFromInt(MaxAmountCents)

// ParseAmount converts a user supplied decimal string to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Digits past
// the second decimal place are rounded half away from zero. Zero, negative
// and non-numeric values are rejected with ErrInvalidAmount, values above
// MaxAmountCents with ErrAmountTooLarge.
//
// Examples:
//
//	ParseAmount("12.34")         -> 1234 cents
//	ParseAmount("12,345")        -> 1235 cents
//	ParseAmount("0.001")         -> ErrInvalidAmount
//	ParseAmount("1000000000.01") -> ErrAmountTooLarge
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two decimals, e.g. "250.00" or "-0.05".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount as a dollar value, e.g. "$250.00" or "$-75.00".
func (m Money) Format() string {
	return "$" + m.String()
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// Percent returns num/den*100 rounded to the nearest whole number, halves
// away from zero. A zero denominator yields 0.
func Percent(num, den Money) int64 {
	if den.Cents == 0 {
		return 0
	}
	return int64(math.Round(float64(num.Cents) * 100 / float64(den.Cents)))
}
