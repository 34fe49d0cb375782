package cache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrationsFS embed.FS

const migrationsTable = "discotrack_schema_migrations"

func migrationDir(backend Backend) string {
	switch backend {
	case PostgreSQLBackend:
		return "migrations/postgres"
	case MySQLBackend:
		return "migrations/mysql"
	default:
		return "migrations/sqlite"
	}
}

// Migrate moves the schema to targetVersion.
// A negative target migrates to the latest version; zero rolls every migration back.
// It returns the schema version before and after the run.
func Migrate(db *sql.DB, backend Backend, targetVersion int) (uint, uint, error) {
	if !backend.IsSQL() {
		return 0, 0, fmt.Errorf("migrations are not supported for the %s backend", backend)
	}

	var driver database.Driver
	var err error
	switch backend {
	case SQLiteBackend:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: migrationsTable})
	case MySQLBackend:
		driver, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	case PostgreSQLBackend:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: migrationsTable})
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, migrationDir(backend))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create migration source: %w", err)
	}

	// The migrate instance is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "discotrack", driver)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return currentVersion, currentVersion, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", currentVersion)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return currentVersion, currentVersion, fmt.Errorf("failed to migrate to version %d: %w", targetVersion, err)
	}

	newVersion, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return currentVersion, currentVersion, fmt.Errorf("failed to read migrated version: %w", err)
	}

	if newVersion != currentVersion {
		log.Info().Str("backend", string(backend)).Uint("from", currentVersion).Uint("to", newVersion).Msg("Migrated cache schema")
	}
	return currentVersion, newVersion, nil
}
