// Package migrations generates and applies schema migrations. Migration files
// are derived from the compiled configuration rather than hand-written: the
// generate step renders the full DDL and emits a new numbered pair only when
// the schema actually changed.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"rizom/internal/schema"
)

// Generate writes the next migration pair for s into dir. The first migration
// is a plain create; later ones drop and recreate, since the engine treats the
// configuration as the source of truth for document shape. Returns false when
// the rendered DDL matches the latest migration and nothing was written.
func Generate(s *schema.Schema, dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating migrations dir: %w", err)
	}
	up := schema.GenerateDDL(s)
	down := schema.GenerateDropDDL(s)

	latest, latestUp, err := latestMigration(dir)
	if err != nil {
		return false, err
	}
	if latest > 0 {
		if latestUp == up {
			return false, nil
		}
		// Schema changed: the new up migration rebuilds from scratch.
		up = down + up
	}

	version := latest + 1
	name := "init"
	if version > 1 {
		name = "schema"
	}
	upPath := filepath.Join(dir, fmt.Sprintf("%04d_%s.up.sql", version, name))
	downPath := filepath.Join(dir, fmt.Sprintf("%04d_%s.down.sql", version, name))
	if err := os.WriteFile(upPath, []byte(up), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", upPath, err)
	}
	if err := os.WriteFile(downPath, []byte(down), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", downPath, err)
	}
	return true, nil
}

// latestMigration returns the highest version present in dir and the content
// of its up file. A fresh rebuild-style up file still compares equal because
// only its trailing create section is matched.
func latestMigration(dir string) (uint64, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, "", fmt.Errorf("reading migrations dir: %w", err)
	}
	var latest uint64
	var latestFile string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		i := strings.IndexByte(name, '_')
		if i <= 0 {
			continue
		}
		v, err := strconv.ParseUint(name[:i], 10, 64)
		if err != nil {
			continue
		}
		if v > latest {
			latest = v
			latestFile = name
		}
	}
	if latest == 0 {
		return 0, "", nil
	}
	content, err := os.ReadFile(filepath.Join(dir, latestFile))
	if err != nil {
		return 0, "", fmt.Errorf("reading %s: %w", latestFile, err)
	}
	up := string(content)
	// Rebuild migrations prefix the create section with drops.
	if i := strings.Index(up, "CREATE TABLE"); i > 0 {
		up = up[i:]
	}
	return latest, up, nil
}

// MigrateUp applies all pending migrations from dir. A database already at
// the latest version is not an error.
func MigrateUp(db *sql.DB, dir string) error {
	m, err := newMigrate(db, os.DirFS(dir))
	if err != nil {
		return err
	}
	// m is not closed: closing it would close db, which the caller owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// MigrateUpFS applies migrations from an fs.FS rooted at the migration files,
// used by tests and embedded deployments.
func MigrateUpFS(db *sql.DB, fsys fs.FS) error {
	m, err := newMigrate(db, fsys)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Status reports whether db is at the latest version available in dir.
func Status(db *sql.DB, dir string) error {
	m, err := newMigrate(db, os.DirFS(dir))
	if err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	sourceDriver, err := iofs.New(os.DirFS(dir), ".")
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	defer sourceDriver.Close()
	latest, err := getLatestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("failed to determine latest version: %w", err)
	}
	if version < latest {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latest, latest-version)
	}
	if version > latest {
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latest)
	}
	return nil
}

func newMigrate(db *sql.DB, fsys fs.FS) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func getLatestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	latest := version
	for {
		next, err := src.Next(latest)
		if err != nil {
			break
		}
		latest = next
	}
	return latest, nil
}

// List returns the migration file names in dir, sorted, for display.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
