package paydb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgx_migrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFiles holds the receipt schema of every backend, one directory
// per backend.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// backend describes how the receipt schema is migrated on one database.
type backend struct {
	name      string
	newDriver func(*sql.DB) (database.Driver, error)
}

var (
	sqliteBackend = backend{
		name: "sqlite",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return sqlite.WithInstance(db, &sqlite.Config{})
		},
	}

	postgresBackend = backend{
		name: "postgres",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return pgx_migrate.WithInstance(db, &pgx_migrate.Config{})
		},
	}
)

// migrateUp brings the receipt schema of db to the latest version. Versions
// that already ran are skipped.
func (b backend) migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, path.Join("migrations", b.name))
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", b.name, err)
	}

	driver, err := b.newDriver(db)
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", b.name, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, b.name, driver)
	if err != nil {
		return fmt.Errorf("create %s migrator: %w", b.name, err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Debugf("%s receipt schema is up to date", b.name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s receipt schema: %w", b.name, err)
	}

	if version, _, err := m.Version(); err == nil {
		log.Infof("Migrated %s receipt schema to version %d", b.name,
			version)
	}

	return nil
}

// ApplySQLiteMigrations migrates the receipt schema of a SQLite database.
func ApplySQLiteMigrations(db *sql.DB) error {
	return sqliteBackend.migrateUp(db)
}

// ApplyPostgresMigrations migrates the receipt schema of a Postgres
// database.
func ApplyPostgresMigrations(db *sql.DB) error {
	return postgresBackend.migrateUp(db)
}
