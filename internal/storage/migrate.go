package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"stacksight/internal/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending migration.
func RunMigrations(cfg db.Config) error {
	return withMigrator(cfg, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(cfg db.Config, steps int) error {
	if steps < 1 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return withMigrator(cfg, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		return nil
	})
}

// MigrationVersion reports the applied schema version. Version 0 means no
// migration has run.
func MigrationVersion(cfg db.Config) (version uint, dirty bool, err error) {
	err = withMigrator(cfg, func(m *migrate.Migrate) error {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

func withMigrator(cfg db.Config, fn func(*migrate.Migrate) error) error {
	dialect, err := cfg.Dialect()
	if err != nil {
		return err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}

	// Closing the migrate instance closes its database handle, so migrations
	// get a connection of their own.
	migrateDB, err := sql.Open(driverName(cfg), dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var (
		driver database.Driver
		name   string
	)
	switch dialect {
	case db.DialectSQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
		name = "sqlite"
	default:
		driver, err = migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
		name = "pgx5"
	}
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func driverName(cfg db.Config) string {
	if cfg.Driver == "" {
		return db.DriverPostgres
	}
	return cfg.Driver
}
