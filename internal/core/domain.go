package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MinPeriodYear is the earliest year a balance update may be recorded for.
	MinPeriodYear = 2000

	maxUsernameLen      = 64
	maxEmailLen         = 254
	maxAccountNumberLen = 64
)

type (
	// PasswordHash is the stored form of a user password. Only the auth
	// package produces values of this type, so the users table never
	// receives plaintext.
	PasswordHash string

	User struct {
		Username     string
		PasswordHash PasswordHash
		Email        string
	}

	// Account is a financial account registered by a user. Company, Plan
	// and Path hold display texts; the storage layer resolves them to codes.
	Account struct {
		Number   string
		Username string
		Company  string
		Plan     string
		Path     string
	}

	// AccountInfo describes an account together with its company link.
	AccountInfo struct {
		Number      string
		Company     string
		Plan        string
		Path        string
		CompanyLink string
	}

	// Period is a calendar month. Balance updates are keyed by account and period.
	Period struct {
		Year  int
		Month int
	}

	BalanceUpdate struct {
		AccountNumber string
		Period        Period
		Amount        Money
	}

	// LookupEntry is one row of a reference table.
	LookupEntry struct {
		Code string
		Text string
	}
)

var (
	ErrEmptyUsername      = errors.New("empty username")
	ErrEmptyPassword      = errors.New("empty password")
	ErrEmptyEmail         = errors.New("empty email")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmptyAccountNumber = errors.New("empty account number")
	ErrEmptyCompany       = errors.New("empty company")
	ErrEmptyPlan          = errors.New("empty financial plan")
	ErrEmptyPath          = errors.New("empty financial path")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrFieldTooLong       = errors.New("field too long")

	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrAccountExists      = errors.New("account number already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// NewPeriod builds a Period from a year and month without validating it.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Validate checks the period lies between January MinPeriodYear and the month of now.
func (p Period) Validate(now time.Time) error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidPeriod
	}
	if p.Year < MinPeriodYear || p.Year > now.Year() {
		return ErrInvalidPeriod
	}
	return nil
}

// Begin returns the first day of the period at midnight UTC.
func (p Period) Begin() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return p.Begin().Format("2006-01")
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyUsername
	}
	if utf8.RuneCountInString(u.Username) > maxUsernameLen {
		return ErrFieldTooLong
	}
	if u.PasswordHash == "" {
		return ErrEmptyPassword
	}
	return ValidateEmail(u.Email)
}

// ValidateEmail performs a shallow shape check; deliverability is not our concern.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	if len(email) > maxEmailLen {
		return ErrFieldTooLong
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return ErrInvalidEmail
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Number) == "" {
		return ErrEmptyAccountNumber
	}
	if utf8.RuneCountInString(a.Number) > maxAccountNumberLen {
		return ErrFieldTooLong
	}
	if strings.TrimSpace(a.Username) == "" {
		return ErrEmptyUsername
	}
	if strings.TrimSpace(a.Company) == "" {
		return ErrEmptyCompany
	}
	if strings.TrimSpace(a.Plan) == "" {
		return ErrEmptyPlan
	}
	if strings.TrimSpace(a.Path) == "" {
		return ErrEmptyPath
	}
	return nil
}

func (u BalanceUpdate) Validate(now time.Time) error {
	if strings.TrimSpace(u.AccountNumber) == "" {
		return ErrEmptyAccountNumber
	}
	if err := u.Period.Validate(now); err != nil {
		return err
	}
	return u.Amount.Validate()
}
