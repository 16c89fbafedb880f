package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stacksight/internal/core"
	"stacksight/internal/db"
	applog "stacksight/internal/log"
)

var ErrNotFound = errors.New("not found")

const (
	defaultLookupTTL     = 10 * time.Minute
	defaultLookupEntries = 64
)

const (
	insertUserQuery = `INSERT INTO users (uname, pword, email) VALUES (:username, :password, :email)`

	userCredentialsQuery = `SELECT uname, pword, email FROM users WHERE uname = :username`

	// Display texts are resolved to codes in the statement itself; an unknown
	// text yields NULL and fails the NOT NULL constraint.
	insertAccountQuery = `INSERT INTO accounts (uname, company, account_num, plan, fin_path)
SELECT
	:username,
	(SELECT company FROM companies WHERE company_t = :company),
	:account_num,
	(SELECT plan FROM financial_plans WHERE plan_t = :plan),
	(SELECT fin_path FROM paths WHERE fin_path_t = :fin_path)`

	accountNumbersQuery = `SELECT account_num FROM accounts WHERE uname = :username ORDER BY account_num`

	accountInfoQuery = `SELECT accounts.account_num, companies.company_t, financial_plans.plan_t, paths.fin_path_t, companies.company_link
FROM accounts
INNER JOIN companies ON accounts.company = companies.company
INNER JOIN financial_plans ON accounts.plan = financial_plans.plan
INNER JOIN paths ON accounts.fin_path = paths.fin_path
WHERE accounts.account_num = :account_num AND accounts.uname = :username`

	upsertUpdateQuery = `INSERT INTO updates (account_num, money, begda)
VALUES (:account_num, :money, :begda)
ON CONFLICT (account_num, begda) DO UPDATE SET money = EXCLUDED.money`

	balanceJoins = `FROM accounts
INNER JOIN companies ON accounts.company = companies.company
INNER JOIN company_types ON companies.ctype = company_types.ctype
INNER JOIN financial_plans ON accounts.plan = financial_plans.plan
INNER JOIN paths ON accounts.fin_path = paths.fin_path
INNER JOIN updates ON accounts.account_num = updates.account_num`

	latestBalancesQuery = `SELECT account_num, company, company_type, plan, path, amount, period
FROM (
	SELECT accounts.uname,
		accounts.account_num AS account_num,
		companies.company_t AS company,
		company_types.ctype_t AS company_type,
		financial_plans.plan_t AS plan,
		paths.fin_path_t AS path,
		updates.money AS amount,
		updates.begda AS period,
		row_number() OVER (PARTITION BY accounts.account_num ORDER BY updates.begda DESC) AS rn
	` + balanceJoins + `
) latest
WHERE rn = 1
AND uname = :username
AND account_num IN :accounts
ORDER BY account_num`

	balanceHistoryQuery = `SELECT accounts.account_num AS account_num,
	companies.company_t AS company,
	company_types.ctype_t AS company_type,
	financial_plans.plan_t AS plan,
	paths.fin_path_t AS path,
	updates.money AS amount,
	updates.begda AS period
` + balanceJoins + `
WHERE accounts.uname = :username
AND accounts.account_num IN :accounts
ORDER BY accounts.account_num, updates.begda DESC`

	separatedSeriesQuery = `SELECT updates.account_num, updates.begda, updates.money
FROM updates
INNER JOIN accounts ON accounts.account_num = updates.account_num
WHERE accounts.uname = :username
AND updates.account_num IN :accounts
ORDER BY updates.account_num, updates.begda`

	combinedSeriesQuery = `SELECT updates.begda, sum(updates.money)
FROM updates
INNER JOIN accounts ON accounts.account_num = updates.account_num
WHERE accounts.uname = :username
AND updates.account_num IN :accounts
GROUP BY updates.begda
ORDER BY updates.begda`

	// %[1]s is a column expression from the Dimension allow-list.
	groupedSeriesQuery = `SELECT %[1]s AS series, updates.begda AS period, sum(updates.money) AS amount
` + balanceJoins + `
WHERE accounts.uname = :username
AND accounts.account_num IN :accounts
GROUP BY %[1]s, updates.begda
ORDER BY series, period`

	companiesQuery = `SELECT company_t FROM companies ORDER BY company_t`
	plansQuery     = `SELECT plan_t FROM financial_plans ORDER BY plan_t`
	pathsQuery     = `SELECT fin_path_t FROM paths ORDER BY fin_path_t`
)

// Repository holds the named queries of the application.
type Repository struct {
	q       db.Querier
	lookups *db.CachedReader
	logger  *slog.Logger
}

// NewRepository builds a repository on q. Lookup reads go through lookups;
// when it is nil a cached reader with default settings wraps q.
func NewRepository(q db.Querier, lookups *db.CachedReader, logger *slog.Logger) *Repository {
	if lookups == nil {
		lookups = db.NewCachedReader(q, defaultLookupTTL, defaultLookupEntries)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		q:       q,
		lookups: lookups,
		logger:  logger.With(applog.FieldComponent, applog.ComponentStorage),
	}
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	err := r.q.RunQuery(ctx, insertUserQuery, db.Params{
		"username": u.Username,
		"password": string(u.PasswordHash),
		"email":    u.Email,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	r.logger.InfoContext(ctx, "User saved", applog.FieldUsername, u.Username)
	return nil
}

// GetUserCredentials returns the stored user, or ErrNotFound.
func (r *Repository) GetUserCredentials(ctx context.Context, username string) (core.User, error) {
	rows, err := r.q.ReturnRunQuery(ctx, userCredentialsQuery, db.Params{"username": username})
	if err != nil {
		return core.User{}, fmt.Errorf("get user credentials: %w", err)
	}
	if len(rows) == 0 {
		return core.User{}, ErrNotFound
	}
	row := rows[0]
	return core.User{
		Username:     asString(row[0]),
		PasswordHash: core.PasswordHash(asString(row[1])),
		Email:        asString(row[2]),
	}, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) error {
	err := r.q.RunQuery(ctx, insertAccountQuery, db.Params{
		"username":    a.Username,
		"account_num": a.Number,
		"company":     a.Company,
		"plan":        a.Plan,
		"fin_path":    a.Path,
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	r.logger.InfoContext(ctx, "Account saved",
		applog.FieldUsername, a.Username,
		applog.FieldAccount, a.Number)
	return nil
}

func (r *Repository) ListAccountNumbers(ctx context.Context, username string) ([]string, error) {
	rows, err := r.q.ReturnRunQuery(ctx, accountNumbersQuery, db.Params{"username": username})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return firstColumn(rows), nil
}

// GetAccountInfo returns the account's descriptive fields when it belongs to username.
func (r *Repository) GetAccountInfo(ctx context.Context, username, accountNum string) (core.AccountInfo, error) {
	rows, err := r.q.ReturnRunQuery(ctx, accountInfoQuery, db.Params{
		"username":    username,
		"account_num": accountNum,
	})
	if err != nil {
		return core.AccountInfo{}, fmt.Errorf("get account info: %w", err)
	}
	if len(rows) == 0 {
		return core.AccountInfo{}, ErrNotFound
	}
	row := rows[0]
	return core.AccountInfo{
		Number:      asString(row[0]),
		Company:     asString(row[1]),
		Plan:        asString(row[2]),
		Path:        asString(row[3]),
		CompanyLink: asString(row[4]),
	}, nil
}

// UpsertUpdate records the balance of an account for a period, replacing
// any amount already stored for that period.
func (r *Repository) UpsertUpdate(ctx context.Context, u core.BalanceUpdate) error {
	err := r.q.RunQuery(ctx, upsertUpdateQuery, db.Params{
		"account_num": u.AccountNumber,
		"money":       u.Amount.Decimal,
		"begda":       u.Period.Begin(),
	})
	if err != nil {
		return fmt.Errorf("upsert update: %w", err)
	}
	r.logger.InfoContext(ctx, "Balance saved",
		applog.FieldAccount, u.AccountNumber,
		applog.FieldPeriod, u.Period.String(),
		applog.FieldAmount, u.Amount.String())
	return nil
}

// LatestBalances returns the most recent update of each selected account.
func (r *Repository) LatestBalances(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error) {
	rows, err := r.balanceTable(ctx, latestBalancesQuery, username, accounts)
	if err != nil {
		return nil, fmt.Errorf("latest balances: %w", err)
	}
	return rows, nil
}

// BalanceHistory returns every update of the selected accounts, newest first per account.
func (r *Repository) BalanceHistory(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error) {
	rows, err := r.balanceTable(ctx, balanceHistoryQuery, username, accounts)
	if err != nil {
		return nil, fmt.Errorf("balance history: %w", err)
	}
	return rows, nil
}

func (r *Repository) balanceTable(ctx context.Context, query, username string, accounts []string) ([]core.BalanceRow, error) {
	table, err := r.q.ReadQueryTable(ctx, query, db.Params{
		"username": username,
		"accounts": accounts,
	})
	if err != nil {
		return nil, err
	}

	out := make([]core.BalanceRow, 0, table.Len())
	for i := range table.Rows {
		row := core.BalanceRow{
			AccountNumber: tableString(table, i, "account_num"),
			Company:       tableString(table, i, "company"),
			CompanyType:   tableString(table, i, "company_type"),
			Plan:          tableString(table, i, "plan"),
			Path:          tableString(table, i, "path"),
		}
		amount, _ := table.Value(i, "amount")
		if row.Amount, err = asMoney(amount); err != nil {
			return nil, err
		}
		period, _ := table.Value(i, "period")
		if row.Period, err = asTime(period); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// SeparatedSeries returns one series per selected account.
func (r *Repository) SeparatedSeries(ctx context.Context, username string, accounts []string) ([]core.Series, error) {
	rows, err := r.q.ReturnRunQuery(ctx, separatedSeriesQuery, db.Params{
		"username": username,
		"accounts": accounts,
	})
	if err != nil {
		return nil, fmt.Errorf("separated series: %w", err)
	}
	series, err := groupSeries(rows)
	if err != nil {
		return nil, fmt.Errorf("separated series: %w", err)
	}
	return series, nil
}

// CombinedSeries sums the selected accounts per period. With DimensionNone
// the result is a single unnamed series; otherwise one series per value of
// the dimension.
func (r *Repository) CombinedSeries(ctx context.Context, username string, accounts []string, by Dimension) ([]core.Series, error) {
	params := db.Params{
		"username": username,
		"accounts": accounts,
	}

	if by == DimensionNone {
		rows, err := r.q.ReturnRunQuery(ctx, combinedSeriesQuery, params)
		if err != nil {
			return nil, fmt.Errorf("combined series: %w", err)
		}
		total := core.Series{Points: make([]core.SeriesPoint, 0, len(rows))}
		for _, row := range rows {
			p, err := seriesPoint(row[0], row[1])
			if err != nil {
				return nil, fmt.Errorf("combined series: %w", err)
			}
			total.Points = append(total.Points, p)
		}
		return []core.Series{total}, nil
	}

	col, err := by.column()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.ReturnRunQuery(ctx, fmt.Sprintf(groupedSeriesQuery, col), params)
	if err != nil {
		return nil, fmt.Errorf("combined series by %s: %w", by, err)
	}
	series, err := groupSeries(rows)
	if err != nil {
		return nil, fmt.Errorf("combined series by %s: %w", by, err)
	}
	return series, nil
}

func (r *Repository) Companies(ctx context.Context) ([]string, error) {
	return r.lookup(ctx, "companies", companiesQuery)
}

func (r *Repository) Plans(ctx context.Context) ([]string, error) {
	return r.lookup(ctx, "plans", plansQuery)
}

func (r *Repository) Paths(ctx context.Context) ([]string, error) {
	return r.lookup(ctx, "paths", pathsQuery)
}

func (r *Repository) lookup(ctx context.Context, name, query string) ([]string, error) {
	rows, err := r.lookups.ReturnRunQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return firstColumn(rows), nil
}

// InvalidateLookups drops cached reference data and returns the number of
// entries removed.
func (r *Repository) InvalidateLookups() int {
	n := r.lookups.Invalidate()
	r.logger.Debug("Lookup cache invalidated", "entries", n)
	return n
}

// LookupCache exposes the cached reader for periodic cleanup.
func (r *Repository) LookupCache() *db.CachedReader {
	return r.lookups
}

// groupSeries folds (name, period, amount) rows ordered by name into series.
func groupSeries(rows []db.Row) ([]core.Series, error) {
	var out []core.Series
	for _, row := range rows {
		name := asString(row[0])
		p, err := seriesPoint(row[1], row[2])
		if err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].Name != name {
			out = append(out, core.Series{Name: name})
		}
		last := &out[len(out)-1]
		last.Points = append(last.Points, p)
	}
	return out, nil
}

func seriesPoint(period, amount any) (core.SeriesPoint, error) {
	date, err := asTime(period)
	if err != nil {
		return core.SeriesPoint{}, err
	}
	money, err := asMoney(amount)
	if err != nil {
		return core.SeriesPoint{}, err
	}
	return core.SeriesPoint{Date: date, Amount: money}, nil
}

func firstColumn(rows []db.Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, asString(row[0]))
	}
	return out
}

func tableString(t *db.Table, i int, col string) string {
	v, _ := t.Value(i, col)
	return asString(v)
}
