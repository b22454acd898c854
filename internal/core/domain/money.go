package domain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every amount carries.
const MoneyScale = 2

const maxExponent = 64

// ErrInvalidAmount is returned for any amount that cannot be represented as Money.
var ErrInvalidAmount = errors.New("invalid amount")

// MaxMoney is the largest value a NUMERIC(12,2) column holds.
var MaxMoney = Money{d: decimal.RequireFromString("9999999999.99")}

// Money is an exact fixed-point amount with two fractional digits.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// ZeroMoney returns 0.00.
func ZeroMoney() Money {
	return Money{d: decimal.Zero.Round(MoneyScale)}
}

// ParseMoney parses a canonical decimal string into a non-negative amount.
// Input with more than two significant fractional digits is rejected, never
// rounded; "5.000" is accepted, "5.001" is not.
func ParseMoney(s string) (Money, error) {
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return Money{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	// Bound the exponent before any rescaling; "1e999999999" would otherwise
	// allocate a huge coefficient.
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return Money{}, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return Money{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, MoneyScale)
	}
	if d.GreaterThan(MaxMoney.d) {
		return Money{}, fmt.Errorf("%w: %q exceeds %s", ErrInvalidAmount, s, MaxMoney)
	}

	return Money{d: d.Round(MoneyScale)}, nil
}

// ParsePositiveMoney is ParseMoney that additionally rejects zero.
func ParsePositiveMoney(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if !m.IsPositive() {
		return Money{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	return m, nil
}

// MustParseMoney panics if s is not valid Money. Intended for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub may produce a negative result; callers check IsNegative.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

func (m Money) LessThan(other Money) bool {
	return m.d.LessThan(other.d)
}

func (m Money) GreaterThan(other Money) bool {
	return m.d.GreaterThan(other.d)
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// String returns the canonical form with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(MoneyScale)
}

// MarshalJSON encodes Money as a quoted canonical string, e.g. "10.50".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
// The number literal is parsed from its text, never through float64.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidAmount)
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}

	parsed, err := ParseMoney(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
