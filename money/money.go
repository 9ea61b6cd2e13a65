// Package money provides a fixed-point monetary amount for ledger arithmetic.
// Amounts are stored as signed minor units (cents) with an optional currency
// hint; arithmetic is exact integer addition and subtraction, never floating
// point. There is no implicit currency conversion: combining amounts with
// different currency hints is an error.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// exponent is the number of decimal places carried by an Amount.
const exponent = 2

// Amount is a signed fixed-point monetary value. The zero value is a zero
// amount without a currency hint. Amount is a value type and safe to copy.
type Amount struct {
	units    int64
	currency string
}

// New creates an Amount from minor units (e.g. cents).
func New(units int64, currency string) Amount {
	return Amount{units: units, currency: currency}
}

// Parse converts a decimal string such as "-42.50" to an Amount.
// Values with more than two decimal places are rejected rather than rounded.
func Parse(value, currency string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d, currency)
}

// MustParse converts a decimal string to an Amount and panics on error.
// Use only in tests or when you're certain the value is valid.
func MustParse(value, currency string) Amount {
	a, err := Parse(value, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts a decimal.Decimal to an Amount.
func FromDecimal(d decimal.Decimal, currency string) (Amount, error) {
	scaled := d.Shift(exponent)
	if !scaled.IsInteger() {
		return Amount{}, fmt.Errorf("amount %s has more than %d decimal places", d, exponent)
	}
	return Amount{units: scaled.IntPart(), currency: currency}, nil
}

// Units returns the amount expressed in minor units.
func (a Amount) Units() int64 { return a.units }

// Currency returns the currency hint, which may be empty.
func (a Amount) Currency() string { return a.currency }

// Decimal returns the amount as a decimal.Decimal in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.units, -exponent)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.units == 0 }

// IsNegative reports whether the amount is a debit.
func (a Amount) IsNegative() bool { return a.units < 0 }

// IsPositive reports whether the amount is a credit.
func (a Amount) IsPositive() bool { return a.units > 0 }

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount {
	return Amount{units: -a.units, currency: a.currency}
}

// Add returns a+b. Both amounts must carry the same currency hint.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkCurrency(b); err != nil {
		return Amount{}, err
	}
	return Amount{units: a.units + b.units, currency: a.mergedCurrency(b)}, nil
}

// Sub returns a-b. Both amounts must carry the same currency hint.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.checkCurrency(b); err != nil {
		return Amount{}, err
	}
	return Amount{units: a.units - b.units, currency: a.mergedCurrency(b)}, nil
}

// Cmp compares two amounts by signed value, ignoring the currency hint.
// It returns -1 if a < b, 0 if a == b, and +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.units < b.units:
		return -1
	case a.units > b.units:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two amounts have the same value and currency hint.
func (a Amount) Equal(b Amount) bool {
	return a.units == b.units && a.currency == b.currency
}

// String renders the amount with two decimal places, followed by the
// currency hint when one is set.
func (a Amount) String() string {
	s := a.Decimal().StringFixed(exponent)
	if a.currency == "" {
		return s
	}
	return s + " " + a.currency
}

// checkCurrency rejects arithmetic between two different non-empty
// currency hints. An empty hint combines with anything.
func (a Amount) checkCurrency(b Amount) error {
	if a.currency != "" && b.currency != "" && a.currency != b.currency {
		return fmt.Errorf("currency mismatch: %s vs %s", a.currency, b.currency)
	}
	return nil
}

func (a Amount) mergedCurrency(b Amount) string {
	if a.currency != "" {
		return a.currency
	}
	return b.currency
}
