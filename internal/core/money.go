package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest balance accepted, matching the numeric(10,2) column.
var MaxAmount = decimal.RequireFromString("99999999.99")

// Money is an exact decimal amount. Balances are never negative.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d rounded half-up to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

// ParseMoney parses a user-entered amount.
//
// Both dot (1234.56) and comma (1234,56) separators are accepted and the value
// is rounded half-up to two decimals. Zero is allowed: an emptied account is a
// valid balance.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := NewMoney(d)
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if m.IsNegative() || m.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.StringFixed(2)
}
