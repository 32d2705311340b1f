package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of decimal places every Amount carries.
	Scale = 2

	// DefaultVATRate is the statutory VAT rate applied to invoices.
	DefaultVATRate = 0.15
)

// Amount is a currency value held at a fixed two-decimal scale. Every
// arithmetic operation re-rounds its result before returning, so two raw
// operations never compose without an intermediate round.
type Amount struct {
	value decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{value: decimal.Zero}
}

// FromFloat converts a binary float into an Amount, correcting for
// representation drift (1499.9999999 becomes 1500.00).
func FromFloat(raw float64) Amount {
	return Amount{value: decimal.NewFromFloat(raw).Round(Scale)}
}

// FromCents builds an Amount from an integer number of cents.
func FromCents(cents int64) Amount {
	return Amount{value: decimal.New(cents, -Scale)}
}

// FromString parses a decimal string such as "1500.00".
func FromString(raw string) (Amount, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return Amount{value: parsed.Round(Scale)}, nil
}

// Add returns amount + other, rounded.
func (amount Amount) Add(other Amount) Amount {
	return Amount{value: amount.value.Add(other.value).Round(Scale)}
}

// Sub returns amount - other, rounded.
func (amount Amount) Sub(other Amount) Amount {
	return Amount{value: amount.value.Sub(other.value).Round(Scale)}
}

// Mul returns amount * other, rounded.
func (amount Amount) Mul(other Amount) Amount {
	return Amount{value: amount.value.Mul(other.value).Round(Scale)}
}

// MulFloat returns amount * factor, rounded. The factor itself is not
// rounded first so fractional rates such as 0.15 stay exact.
func (amount Amount) MulFloat(factor float64) Amount {
	return Amount{value: amount.value.Mul(decimal.NewFromFloat(factor)).Round(Scale)}
}

// Div returns amount / other, rounded.
func (amount Amount) Div(other Amount) (Amount, error) {
	if other.value.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	return Amount{value: amount.value.Div(other.value).Round(Scale)}, nil
}

// Round re-rounds the amount to the fixed scale. Rounding an already
// rounded amount is a no-op.
func (amount Amount) Round() Amount {
	return Amount{value: amount.value.Round(Scale)}
}

// Neg returns the negated amount.
func (amount Amount) Neg() Amount {
	return Amount{value: amount.value.Neg()}
}

// Cents returns the amount as an integer number of cents.
func (amount Amount) Cents() int64 {
	return amount.value.Shift(Scale).IntPart()
}

// Float64 returns the closest binary float. Display and JSON encoding only;
// arithmetic stays on Amount.
func (amount Amount) Float64() float64 {
	result, _ := amount.value.Float64()
	return result
}

// String renders the amount with exactly two decimal places.
func (amount Amount) String() string {
	return amount.value.StringFixed(Scale)
}

// Equal reports whether two amounts are numerically equal.
func (amount Amount) Equal(other Amount) bool {
	return amount.value.Equal(other.value)
}

// LessThan reports amount < other.
func (amount Amount) LessThan(other Amount) bool {
	return amount.value.LessThan(other.value)
}

// GreaterThan reports amount > other.
func (amount Amount) GreaterThan(other Amount) bool {
	return amount.value.GreaterThan(other.value)
}

// GreaterThanOrEqual reports amount >= other.
func (amount Amount) GreaterThanOrEqual(other Amount) bool {
	return amount.value.GreaterThanOrEqual(other.value)
}

// IsZero reports whether the amount is exactly zero.
func (amount Amount) IsZero() bool {
	return amount.value.IsZero()
}

// IsPositive reports whether the amount is strictly positive.
func (amount Amount) IsPositive() bool {
	return amount.value.IsPositive()
}

// IsNegative reports whether the amount is strictly negative.
func (amount Amount) IsNegative() bool {
	return amount.value.IsNegative()
}
