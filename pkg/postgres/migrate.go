package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // register file source driver
)

// RunMigrations applies every pending migration in migrationsDir, a
// golang-migrate source URL such as "file://internal/infrastructure/postgres/migrations".
// An up-to-date schema is not an error.
func RunMigrations(dsn, migrationsDir string) error {
	return withMigrator(dsn, migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("postgres: run migrations up: %w", err)
		}
		return nil
	})
}

// RunMigrationsDown reverts every applied migration, dropping the profile
// and prediction tables. An empty schema is not an error.
func RunMigrationsDown(dsn, migrationsDir string) error {
	return withMigrator(dsn, migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("postgres: run migrations down: %w", err)
		}
		return nil
	})
}

// MigrationVersion reports the applied schema version. version is zero when
// nothing has been applied; dirty means a migration failed halfway.
func MigrationVersion(dsn, migrationsDir string) (version uint, dirty bool, err error) {
	err = withMigrator(dsn, migrationsDir, func(m *migrate.Migrate) error {
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty, err = 0, false, nil
		}
		if err != nil {
			return fmt.Errorf("postgres: read migration version: %w", err)
		}
		return nil
	})
	return version, dirty, err
}

func withMigrator(dsn, migrationsDir string, fn func(m *migrate.Migrate) error) error {
	m, err := migrate.New(migrationsDir, dsn)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	defer m.Close()
	return fn(m)
}
