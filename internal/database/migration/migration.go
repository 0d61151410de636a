package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"prizebot/internal/logging"
)

//go:embed sql/*.sql
var files embed.FS

// upMigrator is the subset of *migrate.Migrate used here.
type upMigrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() (error, error)
}

// newMigrator runs on a dedicated connection so that closing the migrator
// leaves the shared pool open for the steps that follow.
var newMigrator = func(ctx context.Context, db *sql.DB, sourceURL string) (upMigrator, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire migration connection: %w", err)
	}
	// The postgres driver speaks plain database/sql, so it runs on a pgx
	// stdlib connection. Its Close releases conn and never touches db.
	driver, err := migratepostgres.WithConnection(ctx, conn, &migratepostgres.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create postgres migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

var log = logging.Component("database")

// Names returns the embedded migration file names in apply order.
func Names() []string {
	entries, _ := fs.ReadDir(files, "sql")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Generate writes embedded migration files that are missing from dir.
// Files already present are never overwritten. It returns the names written.
func Generate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations dir: %w", err)
	}

	var written []string
	for _, name := range Names() {
		dst := filepath.Join(dir, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("stat %s: %w", name, err)
		}

		data, err := files.ReadFile(path.Join("sql", name))
		if err != nil {
			return written, fmt.Errorf("read embedded %s: %w", name, err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, name)
	}

	log.WithFields(logging.Fields{
		logging.EventFieldKey:  "db_migration_generate",
		logging.StatusFieldKey: "success",
		"written":              len(written),
		"dir":                  dir,
	}).Info("migration files up to date")

	return written, nil
}

// Apply runs all pending migrations found in dir. A database that is already
// at the latest version is not an error.
func Apply(ctx context.Context, db *sql.DB, dir string, dbHost string) error {
	start := time.Now()
	fields := logging.Fields{"db_host": dbHost, "dir": dir}

	log.WithFields(fields).WithFields(logging.Fields{
		logging.EventFieldKey:  "db_migration_start",
		logging.StatusFieldKey: "in_progress",
	}).Info("applying migrations")

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}

	m, err := newMigrator(ctx, db, "file://"+filepath.ToSlash(abs))
	if err != nil {
		logFailure(fields, start, err)
		return err
	}
	defer m.Close()

	// migrate.Up is not context aware; bail out early if we were cancelled
	// while building the migrator.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.WithFields(fields).WithFields(logging.Fields{
				logging.EventFieldKey:    "db_migration_skip",
				logging.StatusFieldKey:   "success",
				logging.DurationFieldKey: time.Since(start).Milliseconds(),
			}).Info("schema already up to date, skipping migration")
			return nil
		}
		logFailure(fields, start, err)
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	log.WithFields(fields).WithFields(logging.Fields{
		logging.EventFieldKey:    "db_migration_success",
		logging.StatusFieldKey:   "success",
		"version":                version,
		"dirty":                  dirty,
		logging.DurationFieldKey: time.Since(start).Milliseconds(),
	}).Info("migrations applied")

	return nil
}

func logFailure(fields logging.Fields, start time.Time, err error) {
	log.WithFields(fields).WithError(err).WithFields(logging.Fields{
		logging.EventFieldKey:    "db_migration_failed",
		logging.StatusFieldKey:   "error",
		logging.DurationFieldKey: time.Since(start).Milliseconds(),
	}).Error("migration failed")
}
