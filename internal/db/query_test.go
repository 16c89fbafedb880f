package db

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := Open(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "exec.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	x := NewExecutor(e, nil)
	ctx := context.Background()
	require.NoError(t, x.RunQuery(ctx, `CREATE TABLE accounts (
		account_num TEXT PRIMARY KEY,
		uname TEXT NOT NULL
	)`, nil))
	require.NoError(t, x.RunQuery(ctx, `CREATE TABLE updates (
		account_num TEXT NOT NULL REFERENCES accounts(account_num),
		begda TEXT NOT NULL,
		money INTEGER NOT NULL,
		PRIMARY KEY (account_num, begda)
	)`, nil))
	for _, num := range []string{"A1", "A2", "A3"} {
		require.NoError(t, x.RunQuery(ctx, "INSERT INTO accounts (account_num, uname) VALUES (:num, :u)",
			Params{"num": num, "u": "alice"}))
	}
	return x
}

func TestExecutor_ReadQueryTableLabels(t *testing.T) {
	x := newTestExecutor(t)
	table, err := x.ReadQueryTable(context.Background(),
		"SELECT account_num AS account, uname AS owner FROM accounts WHERE uname = :u ORDER BY account_num",
		Params{"u": "alice"})
	require.NoError(t, err)

	assert.Equal(t, []string{"account", "owner"}, table.Columns)
	assert.Equal(t, 3, table.Len())
	v, ok := table.Value(2, "account")
	assert.True(t, ok)
	assert.Equal(t, "A3", v)
	_, ok = table.Value(0, "missing")
	assert.False(t, ok)
}

func TestExecutor_ExpandingLengths(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()
	q := "SELECT account_num FROM accounts WHERE account_num IN :nums ORDER BY account_num"

	for _, tc := range []struct {
		nums []string
		want []Row
	}{
		{nums: []string{}, want: nil},
		{nums: []string{"A2"}, want: []Row{{"A2"}}},
		{nums: []string{"A3", "A1", "ZZ"}, want: []Row{{"A1"}, {"A3"}}},
	} {
		rows, err := x.ReturnRunQuery(ctx, q, Params{"nums": tc.nums})
		require.NoError(t, err)
		assert.Equal(t, tc.want, rows, "nums=%v", tc.nums)
	}

	rows, err := x.ReturnRunQuery(ctx,
		"SELECT count(*) FROM accounts WHERE account_num NOT IN :nums", Params{"nums": []string{}})
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(3)}}, rows)
}

func TestExecutor_TupleOrder(t *testing.T) {
	x := newTestExecutor(t)
	rows, err := x.ReturnRunQuery(context.Background(),
		"SELECT uname, account_num FROM accounts WHERE account_num = :n", Params{"n": "A1"})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"alice", "A1"}}, rows)
}

func TestExecutor_UniqueViolationRollsBack(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	err := x.RunQuery(ctx, "INSERT INTO accounts (account_num, uname) VALUES (:n, :u)", Params{"n": "A1", "u": "bob"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Equal(t, KindUniqueViolation, KindOf(err))

	rows, err := x.ReturnRunQuery(ctx, "SELECT uname FROM accounts WHERE account_num = :n", Params{"n": "A1"})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"alice"}}, rows)
}

func TestExecutor_ForeignKeyAndNotNull(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	err := x.RunQuery(ctx, "INSERT INTO updates (account_num, begda, money) VALUES (:n, :d, :m)",
		Params{"n": "NOPE", "d": "2024-01-01", "m": 10})
	assert.ErrorIs(t, err, ErrForeignKey)

	err = x.RunQuery(ctx, "INSERT INTO accounts (account_num, uname) VALUES (:n, :u)", Params{"n": "A9", "u": nil})
	assert.ErrorIs(t, err, ErrDataFormat)
}

func TestExecutor_UpsertAndReturning(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()
	upsert := `INSERT INTO updates (account_num, begda, money) VALUES (:n, :d, :m)
		ON CONFLICT (account_num, begda) DO UPDATE SET money = excluded.money
		RETURNING money`

	rows, err := x.ReturnRunQuery(ctx, upsert, Params{"n": "A1", "d": "2024-01-01", "m": 100})
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(100)}}, rows)

	rows, err = x.ReturnRunQuery(ctx, upsert, Params{"n": "A1", "d": "2024-01-01", "m": 250})
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(250)}}, rows)

	rows, err = x.ReturnRunQuery(ctx, "SELECT count(*) FROM updates", nil)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(1)}}, rows)
}

func TestExecutor_MissingParam(t *testing.T) {
	x := newTestExecutor(t)
	err := x.RunQuery(context.Background(), "DELETE FROM accounts WHERE account_num = :n", nil)
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestExecutor_DebugLogNamesExpandedParams(t *testing.T) {
	x := newTestExecutor(t)
	var buf bytes.Buffer
	x.logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := x.ReturnRunQuery(context.Background(),
		"SELECT account_num FROM accounts WHERE uname = :u AND account_num IN :nums",
		Params{"u": "alice", "nums": []string{"A1"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Query executed")
	assert.Contains(t, out, "kind=return_run")
	assert.Contains(t, out, "expanded=[nums]")
}
