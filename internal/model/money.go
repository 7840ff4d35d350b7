package model

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (euro cents).
type Money int64

// MaxAmount is the largest amount accepted as input: one million euros.
const MaxAmount Money = 100_000_000

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*m = 0
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", b, err)
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MoneyFromDecimal converts a major-unit decimal into Money, rejecting
// fractions of a cent and magnitudes beyond MaxAmount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", d.String())
	}
	if cents.Abs().GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, fmt.Errorf("amount %s exceeds %s", d.String(), MaxAmount)
	}
	return Money(cents.IntPart()), nil
}

// Commission computes the platform fee on price, rounded half-up to the cent.
func Commission(price Money, rate decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(price)).Mul(rate).Round(0).IntPart())
}
