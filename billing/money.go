package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point monetary amount
// =============================================================================

// Money is a monetary amount in a single implicit currency.
//
// All fee, payment, and ledger arithmetic goes through this type so that
// rounding happens in exactly one place: Round2(), applied only at emission
// points (a usage segment amount, a ledger entry, a payment). Intermediate
// values such as daily rates carry full decimal precision.
type Money struct {
	value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{value: decimal.NewFromInt(int64(value))}
}

func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{value: d}
}

// ParseMoney parses a decimal string. This is the path for values read from
// storage, where malformed input must surface as an error instead of 0.00.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parsing money %q: %w", s, err)
	}
	return Money{value: d}, nil
}

// MustParseMoney parses a decimal string, panicking on malformed input.
// For literals only.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney() Money { return Money{} }

func (m Money) Add(o Money) Money              { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money              { return Money{value: m.value.Sub(o.value)} }
func (m Money) Neg() Money                     { return Money{value: m.value.Neg()} }
func (m Money) Abs() Money                     { return Money{value: m.value.Abs()} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{value: m.value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money    { return Money{value: m.value.Div(s)} }
func (m Money) MulInt(n int) Money             { return m.Mul(decimal.NewFromInt(int64(n))) }
func (m Money) DivInt(n int) Money             { return m.Div(decimal.NewFromInt(int64(n))) }
func (m Money) IsZero() bool                   { return m.value.IsZero() }
func (m Money) IsNegative() bool               { return m.value.IsNegative() }
func (m Money) IsPositive() bool               { return m.value.IsPositive() }
func (m Money) GreaterThan(o Money) bool       { return m.value.GreaterThan(o.value) }
func (m Money) GreaterOrEqual(o Money) bool    { return m.value.GreaterThanOrEqual(o.value) }
func (m Money) LessThan(o Money) bool          { return m.value.LessThan(o.value) }
func (m Money) Equal(o Money) bool             { return m.value.Equal(o.value) }
func (m Money) Decimal() decimal.Decimal       { return m.value }

// Round2 rounds to 2 decimal places. The only rounding operation in the engine.
func (m Money) Round2() Money { return Money{value: m.value.Round(2)} }

// Float64 returns a float approximation for serialization boundaries only.
func (m Money) Float64() float64 {
	f, _ := m.value.Float64()
	return f
}

func (m Money) String() string { return m.value.StringFixed(2) }

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}
