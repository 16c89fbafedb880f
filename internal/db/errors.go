package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies database failures callers react to differently.
type Kind int

const (
	KindOther Kind = iota
	KindUniqueViolation
	KindDataFormat
	KindForeignKey
)

func (k Kind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique_violation"
	case KindDataFormat:
		return "data_format"
	case KindForeignKey:
		return "foreign_key"
	default:
		return "other"
	}
}

var (
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrDataFormat      = errors.New("invalid data format")
	ErrForeignKey      = errors.New("foreign key violation")
)

// QueryError wraps a driver error with its classification. The driver error
// stays reachable through errors.As.
type QueryError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel of the error's kind.
func (e *QueryError) Is(target error) bool {
	switch target {
	case ErrUniqueViolation:
		return e.Kind == KindUniqueViolation
	case ErrDataFormat:
		return e.Kind == KindDataFormat
	case ErrForeignKey:
		return e.Kind == KindForeignKey
	}
	return false
}

// KindOf returns the classification of err, KindOther when it is not a QueryError.
func KindOf(err error) Kind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindOther
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) Kind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgres(pgErr.Code)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr.Code(), liteErr.Error())
	}
	return KindOther
}

// classifyPostgres maps SQLSTATE codes: class 22 is data exception, class 23
// integrity constraint violation.
func classifyPostgres(code string) Kind {
	switch code {
	case "23505":
		return KindUniqueViolation
	case "23503":
		return KindForeignKey
	case "23502", "23514":
		return KindDataFormat
	}
	if strings.HasPrefix(code, "22") {
		return KindDataFormat
	}
	return KindOther
}

func classifySQLite(code int, msg string) Kind {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return KindUniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return KindForeignKey
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG:
		return KindDataFormat
	}
	// Primary result code only: fall back to the message.
	if code&0xff == sqlite3.SQLITE_CONSTRAINT {
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return KindUniqueViolation
		case strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return KindForeignKey
		case strings.Contains(msg, "NOT NULL constraint failed"), strings.Contains(msg, "CHECK constraint failed"):
			return KindDataFormat
		}
	}
	return KindOther
}
