package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tortshark/backend/internal/logger"
)

//go:embed sql/*.sql
var migrationFS embed.FS

func newMigrator(db *sql.DB, dbName string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", sourceDriver, dbName, dbDriver)
}

// Run executes all pending migrations
func Run(db *sql.DB, dbName string) error {
	m, err := newMigrator(db, dbName)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logger.Warn().Uint("version", version).Msg("Migration version is dirty")
	} else if err == migrate.ErrNilVersion {
		logger.Info().Msg("No migrations to run")
	} else {
		logger.Info().Uint("version", version).Msg("Migrations complete")
	}

	return nil
}

// Rollback rolls back the last migration
func Rollback(db *sql.DB, dbName string) error {
	m, err := newMigrator(db, dbName)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// Status returns current migration version
func Status(db *sql.DB, dbName string) (uint, bool, error) {
	m, err := newMigrator(db, dbName)
	if err != nil {
		return 0, false, err
	}
	return m.Version()
}
