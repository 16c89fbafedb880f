package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPeriodValidate(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		p    Period
		ok   bool
	}{
		{"first allowed", NewPeriod(MinPeriodYear, 1), true},
		{"current year", NewPeriod(2025, 12), true},
		{"month zero", NewPeriod(2024, 0), false},
		{"month thirteen", NewPeriod(2024, 13), false},
		{"before min year", NewPeriod(1999, 12), false},
		{"future year", NewPeriod(2026, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate(now)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
			}
		})
	}
}

func TestPeriodBegin(t *testing.T) {
	p := PeriodOf(time.Date(2024, 1, 27, 13, 45, 0, 0, time.Local))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.Begin())
	assert.Equal(t, "2024-01", p.String())
}

func TestUserValidate(t *testing.T) {
	good := User{Username: "alice", PasswordHash: "$2a$10$x", Email: "alice@example.com"}
	assert.NoError(t, good.Validate())

	u := good
	u.Username = "  "
	assert.ErrorIs(t, u.Validate(), ErrEmptyUsername)

	u = good
	u.PasswordHash = ""
	assert.ErrorIs(t, u.Validate(), ErrEmptyPassword)

	u = good
	u.Email = ""
	assert.ErrorIs(t, u.Validate(), ErrEmptyEmail)

	u = good
	u.Username = strings.Repeat("a", 65)
	assert.ErrorIs(t, u.Validate(), ErrFieldTooLong)
}

func TestValidateEmail(t *testing.T) {
	for _, e := range []string{"a@b", "first.last@example.co.uk"} {
		assert.NoError(t, ValidateEmail(e), e)
	}
	for _, e := range []string{"@example.com", "alice@", "alice", "al ice@example.com"} {
		assert.ErrorIs(t, ValidateEmail(e), ErrInvalidEmail, e)
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{Number: "A1", Username: "alice", Company: "Bank", Plan: "Savings", Path: "Safe"}
	assert.NoError(t, good.Validate())

	missing := []struct {
		mutate func(*Account)
		want   error
	}{
		{func(a *Account) { a.Number = "" }, ErrEmptyAccountNumber},
		{func(a *Account) { a.Username = "" }, ErrEmptyUsername},
		{func(a *Account) { a.Company = "" }, ErrEmptyCompany},
		{func(a *Account) { a.Plan = "" }, ErrEmptyPlan},
		{func(a *Account) { a.Path = "" }, ErrEmptyPath},
	}
	for _, m := range missing {
		a := good
		m.mutate(&a)
		assert.ErrorIs(t, a.Validate(), m.want)
	}
}

func TestBalanceUpdateValidate(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	u := BalanceUpdate{AccountNumber: "A1", Period: NewPeriod(2024, 1), Amount: NewMoney(decimal.NewFromInt(100))}
	assert.NoError(t, u.Validate(now))

	u.Amount = NewMoney(decimal.NewFromInt(-1))
	assert.ErrorIs(t, u.Validate(now), ErrInvalidAmount)
}
