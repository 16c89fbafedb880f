package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	applog "stacksight/internal/log"
)

// Row is one result tuple in SELECT-list order.
type Row []any

// Table is a query result with its column labels.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the column labelled name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i in the column labelled name.
func (t *Table) Value(i int, name string) (any, bool) {
	col := t.ColumnIndex(name)
	if col < 0 || i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[i][col], true
}

// Querier is the contract the storage layer depends on.
type Querier interface {
	ReadQueryTable(ctx context.Context, query string, params Params) (*Table, error)
	RunQuery(ctx context.Context, query string, params Params) error
	ReturnRunQuery(ctx context.Context, query string, params Params) ([]Row, error)
}

// Executor runs parameterised templates against an Engine. Every call
// acquires and releases its own connection; nothing is held between calls.
type Executor struct {
	engine *Engine
	logger *slog.Logger
}

func NewExecutor(engine *Engine, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{engine: engine, logger: logger.With(applog.FieldComponent, applog.ComponentDB)}
}

// ReadQueryTable runs a read query and returns its rows labelled by the
// result-set column names (the SQL aliases).
func (x *Executor) ReadQueryTable(ctx context.Context, query string, params Params) (*Table, error) {
	stmt, args, err := Bind(x.engine.Dialect(), query, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := x.engine.DB().QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, wrap("read query", err)
	}
	defer rows.Close()

	table, err := scanTable(rows)
	if err != nil {
		return nil, wrap("read query", err)
	}
	x.logQuery(ctx, "read", start, len(table.Rows), params)
	return table, nil
}

// RunQuery executes a statement in a transaction that commits when the
// statement succeeds and rolls back otherwise.
func (x *Executor) RunQuery(ctx context.Context, query string, params Params) error {
	stmt, args, err := Bind(x.engine.Dialect(), query, params)
	if err != nil {
		return err
	}

	start := time.Now()
	var affected int64
	err = x.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return wrap("run query", err)
	}
	x.logQuery(ctx, "run", start, int(affected), params)
	return nil
}

// ReturnRunQuery executes a query in a transaction and returns the raw tuples.
func (x *Executor) ReturnRunQuery(ctx context.Context, query string, params Params) ([]Row, error) {
	stmt, args, err := Bind(x.engine.Dialect(), query, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var out []Row
	err = x.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		table, err := scanTable(rows)
		if err != nil {
			return err
		}
		out = table.Rows
		return nil
	})
	if err != nil {
		return nil, wrap("return run query", err)
	}
	x.logQuery(ctx, "return_run", start, len(out), params)
	return out, nil
}

func (x *Executor) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := x.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				x.logger.WarnContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (x *Executor) logQuery(ctx context.Context, kind string, start time.Time, rows int, params Params) {
	if !x.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	x.logger.DebugContext(ctx, "Query executed",
		"kind", kind,
		applog.FieldRows, rows,
		applog.FieldDuration, time.Since(start).Milliseconds(),
		"expanded", Expanding(params))
}

func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	table := &Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// Drivers may reuse byte buffers between rows.
			if b, ok := v.([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
		}
		table.Rows = append(table.Rows, Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
