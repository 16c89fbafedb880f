package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stacksight/internal/core"
	"stacksight/internal/db"
	applog "stacksight/internal/log"
	"stacksight/internal/storage"
)

// Store is the persistence the service needs; *storage.Repository implements it.
type Store interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUserCredentials(ctx context.Context, username string) (core.User, error)
	CreateAccount(ctx context.Context, a core.Account) error
	ListAccountNumbers(ctx context.Context, username string) ([]string, error)
	GetAccountInfo(ctx context.Context, username, accountNum string) (core.AccountInfo, error)
	UpsertUpdate(ctx context.Context, u core.BalanceUpdate) error
	LatestBalances(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error)
	BalanceHistory(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error)
	SeparatedSeries(ctx context.Context, username string, accounts []string) ([]core.Series, error)
	CombinedSeries(ctx context.Context, username string, accounts []string, by storage.Dimension) ([]core.Series, error)
	Companies(ctx context.Context) ([]string, error)
	Plans(ctx context.Context) ([]string, error)
	Paths(ctx context.Context) ([]string, error)
}

// PasswordHasher is implemented by auth.Hasher.
type PasswordHasher interface {
	Hash(plaintext string) (core.PasswordHash, error)
	Check(plaintext string, hash core.PasswordHash) bool
}

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, ev core.Event) error
}

// AccountInput is the form for registering an account. Company, Plan and
// Path are display texts from the lookup tables.
type AccountInput struct {
	Number  string
	Company string
	Plan    string
	Path    string
}

// UpdateInput is the form for recording a monthly balance.
type UpdateInput struct {
	AccountNumber string
	Year          int
	Month         int
	Amount        string
}

// AccountService implements the user-facing operations on top of a Store.
type AccountService struct {
	store  Store
	hasher PasswordHasher
	events EventPublisher
	logger *applog.Logger
	audit  *applog.StructuredLogger
	now    func() time.Time
}

// NewAccountService wires the service. events may be nil, in which case no
// events are published.
func NewAccountService(store Store, hasher PasswordHasher, events EventPublisher, logger *slog.Logger) *AccountService {
	svcLogger := applog.Wrap(logger, applog.ComponentAccounts)
	return &AccountService{
		store:  store,
		hasher: hasher,
		events: events,
		logger: svcLogger,
		audit:  applog.NewStructuredLogger(svcLogger),
		now:    time.Now,
	}
}

// SignUp creates a user. The password is hashed before it reaches the store.
func (s *AccountService) SignUp(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if password == "" {
		return invalid(core.ErrEmptyPassword)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	user := core.User{Username: username, PasswordHash: hash, Email: email}
	if err := user.Validate(); err != nil {
		return invalid(err)
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return mapStoreError("sign up", err, core.ErrUsernameTaken)
	}

	s.logger.InfoContext(ctx, "User signed up",
		applog.FieldOperation, applog.OpSignUp,
		applog.FieldUsername, username)
	s.publish(ctx, core.Event{Type: core.EventUserSignedUp, Username: username})
	return nil
}

// Login checks the credentials and returns the username on success. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", core.ErrInvalidCredentials
	}

	user, err := s.store.GetUserCredentials(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.InfoContext(ctx, "Login rejected", applog.FieldUsername, username, "reason", "unknown user")
		return "", core.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "Login rejected", applog.FieldUsername, username, "reason", "wrong password")
		return "", core.ErrInvalidCredentials
	}

	s.logger.InfoContext(ctx, "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUsername, user.Username)
	return user.Username, nil
}

// AddAccount registers an account owned by username.
func (s *AccountService) AddAccount(ctx context.Context, username string, in AccountInput) error {
	account := core.Account{
		Number:   strings.TrimSpace(in.Number),
		Username: username,
		Company:  strings.TrimSpace(in.Company),
		Plan:     strings.TrimSpace(in.Plan),
		Path:     strings.TrimSpace(in.Path),
	}
	if err := account.Validate(); err != nil {
		return invalid(err)
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return mapStoreError("add account", err, core.ErrAccountExists)
	}

	s.publish(ctx, core.Event{
		Type:          core.EventAccountCreated,
		Username:      username,
		AccountNumber: account.Number,
	})
	return nil
}

// RecordUpdate stores the balance of one of the user's accounts for a month,
// overwriting an earlier value for the same month.
func (s *AccountService) RecordUpdate(ctx context.Context, username string, in UpdateInput) (core.BalanceUpdate, error) {
	amount, err := core.ParseMoney(in.Amount)
	if err != nil {
		return core.BalanceUpdate{}, invalid(err)
	}
	update := core.BalanceUpdate{
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		Period:        core.NewPeriod(in.Year, in.Month),
		Amount:        amount,
	}
	if err := update.Validate(s.now()); err != nil {
		return core.BalanceUpdate{}, invalid(err)
	}

	if _, err := s.store.GetAccountInfo(ctx, username, update.AccountNumber); err != nil {
		return core.BalanceUpdate{}, mapStoreError("record update", err, nil)
	}
	if err := s.store.UpsertUpdate(ctx, update); err != nil {
		return core.BalanceUpdate{}, mapStoreError("record update", err, nil)
	}

	s.audit.LogBalanceRecorded(ctx, username, update.AccountNumber, update.Period.String(), amount.String())
	s.publish(ctx, core.Event{
		Type:          core.EventBalanceRecorded,
		Username:      username,
		AccountNumber: update.AccountNumber,
		Period:        update.Period.String(),
		Amount:        amount.String(),
	})
	return update, nil
}

func (s *AccountService) Accounts(ctx context.Context, username string) ([]string, error) {
	nums, err := s.store.ListAccountNumbers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return nums, nil
}

func (s *AccountService) AccountInfo(ctx context.Context, username, accountNum string) (core.AccountInfo, error) {
	info, err := s.store.GetAccountInfo(ctx, username, accountNum)
	if err != nil {
		return core.AccountInfo{}, mapStoreError("account info", err, nil)
	}
	return info, nil
}

// LatestBalances returns the newest balance per account. A nil selection
// means every account of the user; an empty one selects nothing.
func (s *AccountService) LatestBalances(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error) {
	accounts, err := s.selection(ctx, username, accounts)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.LatestBalances(ctx, username, accounts)
	if err != nil {
		return nil, fmt.Errorf("latest balances: %w", err)
	}
	return rows, nil
}

// AllBalances returns the full history of the selected accounts.
func (s *AccountService) AllBalances(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error) {
	accounts, err := s.selection(ctx, username, accounts)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.BalanceHistory(ctx, username, accounts)
	if err != nil {
		return nil, fmt.Errorf("all balances: %w", err)
	}
	return rows, nil
}

func (s *AccountService) SeparatedChart(ctx context.Context, username string, accounts []string) ([]core.Series, error) {
	accounts, err := s.selection(ctx, username, accounts)
	if err != nil {
		return nil, err
	}
	series, err := s.store.SeparatedSeries(ctx, username, accounts)
	if err != nil {
		return nil, fmt.Errorf("separated chart: %w", err)
	}
	return series, nil
}

// CombinedChart sums the selected accounts per month, optionally split by a
// dimension label (see storage.Dimensions).
func (s *AccountService) CombinedChart(ctx context.Context, username string, accounts []string, by string) ([]core.Series, error) {
	dim, err := storage.ParseDimension(by)
	if err != nil {
		return nil, invalid(err)
	}
	accounts, err = s.selection(ctx, username, accounts)
	if err != nil {
		return nil, err
	}
	series, err := s.store.CombinedSeries(ctx, username, accounts, dim)
	if err != nil {
		return nil, fmt.Errorf("combined chart: %w", err)
	}
	return series, nil
}

// Lookups returns the reference data for the account form.
func (s *AccountService) Lookups(ctx context.Context) (core.Lookups, error) {
	var (
		out core.Lookups
		err error
	)
	if out.Companies, err = s.store.Companies(ctx); err != nil {
		return core.Lookups{}, err
	}
	if out.Plans, err = s.store.Plans(ctx); err != nil {
		return core.Lookups{}, err
	}
	if out.Paths, err = s.store.Paths(ctx); err != nil {
		return core.Lookups{}, err
	}
	return out, nil
}

func (s *AccountService) selection(ctx context.Context, username string, accounts []string) ([]string, error) {
	if accounts != nil {
		return accounts, nil
	}
	return s.Accounts(ctx, username)
}

func (s *AccountService) publish(ctx context.Context, ev core.Event) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldEvent, ev.Type,
			applog.FieldError, err)
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
}

// mapStoreError translates storage failures into domain errors. A unique
// violation becomes onConflict when set.
func mapStoreError(op string, err error, onConflict error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, core.ErrAccountNotFound)
	case onConflict != nil && errors.Is(err, db.ErrUniqueViolation):
		return fmt.Errorf("%s: %w: %w", op, onConflict, err)
	case errors.Is(err, db.ErrDataFormat), errors.Is(err, db.ErrForeignKey):
		return fmt.Errorf("%s: %w: %w", op, core.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
