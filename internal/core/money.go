package core

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Money is an exact monetary amount in minor units (cents).
type Money struct {
	Cents int64
}

// amountPattern admits plain unsigned decimals: no sign, exponent or grouping.
var amountPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// MaxCents is the largest amount a credit may carry, 9999999999.99. It is the
// bound of the NUMERIC(12,2) column, so every backend accepts the same amounts,
// and it leaves int64 month totals room for millions of credits.
const MaxCents int64 = 1_000_000_000_000 - 1

// parseCents reads an unsigned decimal amount, accepting "," as the decimal
// separator, and rounds half-up to whole cents: "12.345" is 1235, "1,5" is 150.
func parseCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if !amountPattern.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Round is half away from zero, which is half-up for unsigned input.
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParsePositiveCents is parseCents rejecting amounts that round to zero.
func ParsePositiveCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseNonNegativeCents accepts zero. Store-reported totals use it, since a
// month without credits is legitimate.
func ParseNonNegativeCents(s string) (int64, error) {
	return parseCents(s)
}

// ParseMoney parses a positive decimal amount.
func ParseMoney(s string) (Money, error) {
	cents, err := ParsePositiveCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders exactly two fractional digits, e.g. "45.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// MarshalJSON encodes the amount as a decimal string so clients never see a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n json.Number
		if json.Unmarshal(data, &n) != nil {
			return ErrInvalidAmount
		}
		raw = n.String()
	}
	cents, err := parseCents(raw)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}
