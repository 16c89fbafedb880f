// Package db is the data-access core: a process-wide connection pool, the
// named-parameter binder and the transactional query executor built on it.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Dialect decides how positional placeholders are spelled.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Config holds the credentials and pool settings for Open.
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Path is the database file for the sqlite driver.
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Dialect returns the placeholder dialect for the configured driver.
func (c Config) Dialect() (Dialect, error) {
	switch c.Driver {
	case DriverPostgres, "":
		return DialectPostgres, nil
	case DriverSQLite:
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
}

// DSN builds the data source name handed to database/sql.
func (c Config) DSN() (string, error) {
	d, err := c.Dialect()
	if err != nil {
		return "", err
	}
	if d == DialectSQLite {
		if c.Path == "" {
			return "", errors.New("sqlite database path is empty")
		}
		return c.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", nil
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// Engine is the shared connection pool handle. It is safe for concurrent use
// and lives for the whole process.
type Engine struct {
	db      *sql.DB
	dialect Dialect
	driver  string
}

// Open creates the pool without connecting: bad credentials or an unreachable
// host surface on first use, or on Ping.
func Open(cfg Config) (*Engine, error) {
	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return &Engine{db: sqlDB, dialect: dialect, driver: driver}, nil
}

// DB exposes the underlying pool, e.g. for migrations.
func (e *Engine) DB() *sql.DB { return e.db }

func (e *Engine) Dialect() Dialect { return e.dialect }

func (e *Engine) Driver() string { return e.driver }

func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", e.dialect, err)
	}
	return nil
}

func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}
