package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"

	"creditledger/internal/core"
)

// numericText renders an amount as a NUMERIC literal, e.g. "45.00".
func numericText(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

// moneyFromNumeric converts a NUMERIC column read as text back to cents.
func moneyFromNumeric(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return core.Money{}, fmt.Errorf("numeric %q has more than two decimals", s)
	}
	if cents.Abs().GreaterThan(decimal.NewFromInt(core.MaxCents)) {
		return core.Money{}, fmt.Errorf("numeric %q is outside the amount range", s)
	}
	return core.Money{Cents: cents.IntPart()}, nil
}
