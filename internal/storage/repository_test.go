package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacksight/internal/core"
	"stacksight/internal/db"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	cfg := db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "stacksight.db")}
	require.NoError(t, RunMigrations(cfg))

	engine, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	return NewRepository(db.NewExecutor(engine, nil), nil, nil)
}

func seedUser(t *testing.T, r *Repository, username string) {
	t.Helper()
	require.NoError(t, r.CreateUser(context.Background(), core.User{
		Username:     username,
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuuQ7mR6Jc2Vd0dyzKY1K3JrxwFqLLXyS",
		Email:        username + "@example.com",
	}))
}

func seedAccount(t *testing.T, r *Repository, username, number, company, plan string) {
	t.Helper()
	require.NoError(t, r.CreateAccount(context.Background(), core.Account{
		Number:   number,
		Username: username,
		Company:  company,
		Plan:     plan,
		Path:     "Long Term",
	}))
}

func record(t *testing.T, r *Repository, account string, year, month int, amount string) {
	t.Helper()
	m, err := core.ParseMoney(amount)
	require.NoError(t, err)
	require.NoError(t, r.UpsertUpdate(context.Background(), core.BalanceUpdate{
		AccountNumber: account,
		Period:        core.NewPeriod(year, month),
		Amount:        m,
	}))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	cfg := db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "m.db")}
	require.NoError(t, RunMigrations(cfg))
	require.NoError(t, RunMigrations(cfg))

	version, dirty, err := MigrationVersion(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.False(t, dirty)

	require.NoError(t, RollbackMigrations(cfg, 1))
	version, _, err = MigrationVersion(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	assert.Error(t, RollbackMigrations(cfg, 0))
}

func TestRepository_Users(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, r, "alice")

	u, err := r.GetUserCredentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEmpty(t, u.PasswordHash)

	_, err = r.GetUserCredentials(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "x", Email: "other@example.com"})
	assert.ErrorIs(t, err, db.ErrUniqueViolation)

	// The failed insert left the original row alone.
	u, err = r.GetUserCredentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
}

func TestRepository_Accounts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, r, "alice")
	seedUser(t, r, "bob")
	seedAccount(t, r, "alice", "IT-002", "Revolut", "Savings")
	seedAccount(t, r, "alice", "IT-001", "ING", "Checking")
	seedAccount(t, r, "bob", "DE-100", "N26", "Checking")

	nums, err := r.ListAccountNumbers(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"IT-001", "IT-002"}, nums)

	info, err := r.GetAccountInfo(ctx, "alice", "IT-002")
	require.NoError(t, err)
	assert.Equal(t, core.AccountInfo{
		Number:      "IT-002",
		Company:     "Revolut",
		Plan:        "Savings",
		Path:        "Long Term",
		CompanyLink: "https://www.revolut.com",
	}, info)

	_, err = r.GetAccountInfo(ctx, "alice", "DE-100")
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.CreateAccount(ctx, core.Account{Number: "IT-001", Username: "bob", Company: "ING", Plan: "Checking", Path: "Long Term"})
	assert.ErrorIs(t, err, db.ErrUniqueViolation)

	err = r.CreateAccount(ctx, core.Account{Number: "IT-003", Username: "alice", Company: "Nope Bank", Plan: "Checking", Path: "Long Term"})
	assert.ErrorIs(t, err, db.ErrDataFormat)
}

func TestRepository_UpsertIsIdempotent(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, r, "alice")
	seedAccount(t, r, "alice", "IT-001", "ING", "Checking")

	record(t, r, "IT-001", 2024, 3, "1000.50")
	record(t, r, "IT-001", 2024, 3, "1200")

	history, err := r.BalanceHistory(ctx, "alice", []string{"IT-001"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "1200.00", history[0].Amount.String())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), history[0].Period)

	err = r.UpsertUpdate(ctx, core.BalanceUpdate{
		AccountNumber: "XX-404",
		Period:        core.NewPeriod(2024, 3),
		Amount:        core.Money{},
	})
	assert.ErrorIs(t, err, db.ErrForeignKey)
}

func TestRepository_Balances(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, r, "alice")
	seedUser(t, r, "bob")
	seedAccount(t, r, "alice", "IT-001", "ING", "Checking")
	seedAccount(t, r, "alice", "IT-002", "Interactive Brokers", "ETF Portfolio")
	seedAccount(t, r, "bob", "DE-100", "N26", "Checking")

	record(t, r, "IT-001", 2024, 1, "100")
	record(t, r, "IT-001", 2024, 2, "150.25")
	record(t, r, "IT-002", 2024, 1, "2000")
	record(t, r, "DE-100", 2024, 2, "9")

	latest, err := r.LatestBalances(ctx, "alice", []string{"IT-001", "IT-002", "DE-100"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "IT-001", latest[0].AccountNumber)
	assert.Equal(t, "150.25", latest[0].Amount.String())
	assert.Equal(t, "Bank", latest[0].CompanyType)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), latest[0].Period)
	assert.Equal(t, "IT-002", latest[1].AccountNumber)
	assert.Equal(t, "Broker", latest[1].CompanyType)
	assert.Equal(t, "ETF Portfolio", latest[1].Plan)

	history, err := r.BalanceHistory(ctx, "alice", []string{"IT-001"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Period.After(history[1].Period))

	empty, err := r.LatestBalances(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_Series(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, r, "alice")
	seedAccount(t, r, "alice", "IT-001", "ING", "Checking")
	seedAccount(t, r, "alice", "IT-002", "ING", "Savings")
	seedAccount(t, r, "alice", "IT-003", "DEGIRO", "ETF Portfolio")

	record(t, r, "IT-001", 2024, 1, "100")
	record(t, r, "IT-001", 2024, 2, "200")
	record(t, r, "IT-002", 2024, 1, "50.50")
	record(t, r, "IT-003", 2024, 2, "1000")

	all := []string{"IT-001", "IT-002", "IT-003"}

	separated, err := r.SeparatedSeries(ctx, "alice", all)
	require.NoError(t, err)
	require.Len(t, separated, 3)
	assert.Equal(t, "IT-001", separated[0].Name)
	assert.Len(t, separated[0].Points, 2)
	assert.True(t, separated[0].Points[0].Date.Before(separated[0].Points[1].Date))

	combined, err := r.CombinedSeries(ctx, "alice", all, DimensionNone)
	require.NoError(t, err)
	require.Len(t, combined, 1)
	require.Len(t, combined[0].Points, 2)
	assert.Equal(t, "150.50", combined[0].Points[0].Amount.String())
	assert.Equal(t, "1200.00", combined[0].Points[1].Amount.String())

	byCompany, err := r.CombinedSeries(ctx, "alice", all, DimensionCompany)
	require.NoError(t, err)
	require.Len(t, byCompany, 2)
	assert.Equal(t, "DEGIRO", byCompany[0].Name)
	assert.Equal(t, "ING", byCompany[1].Name)
	assert.Equal(t, "150.50", byCompany[1].Points[0].Amount.String())

	none, err := r.CombinedSeries(ctx, "bob", all, DimensionNone)
	require.NoError(t, err)
	require.Len(t, none, 1)
	assert.Empty(t, none[0].Points)

	_, err = r.CombinedSeries(ctx, "alice", all, Dimension("uname; DROP TABLE users"))
	assert.ErrorIs(t, err, ErrUnknownDimension)
}

func TestRepository_LookupsAreCached(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	companies, err := r.Companies(ctx)
	require.NoError(t, err)
	assert.Contains(t, companies, "ING")

	plans, err := r.Plans(ctx)
	require.NoError(t, err)
	assert.Contains(t, plans, "Savings")

	paths, err := r.Paths(ctx)
	require.NoError(t, err)
	assert.Contains(t, paths, "Retirement")

	_, err = r.Companies(ctx)
	require.NoError(t, err)
	stats := r.LookupCache().Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.Equal(t, 3, stats.Entries)

	assert.Equal(t, 3, r.InvalidateLookups())
	assert.Equal(t, 0, r.LookupCache().Stats().Entries)
}
