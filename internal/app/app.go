// Package app is the layer between the CLI and the operations service. It
// constructs all dependencies from config, exposes the operation surfaces,
// and manages database and log-file lifecycle on Close.
package app

import (
	"fmt"
	"os"
	"time"

	"rizom/internal/config"
	"rizom/internal/migrations"
	"rizom/internal/operations"
	"rizom/internal/rizom"
	"rizom/internal/schema"
	"rizom/internal/store"
)

// App is a fully wired engine instance.
type App struct {
	cfg     *config.Config
	types   *rizom.CompiledConfig
	store   *store.SQLite
	service *operations.Service
	logFile *os.File
}

// New compiles the document-type configuration, opens the database and wires
// the operations service. operation identifies the CLI command being run and
// tags every log line. The caller must call Close when done.
func New(cfg *config.Config, types rizom.Config, operation string) (*App, error) {
	if len(types.Locales) == 0 && len(cfg.Locales.Codes) > 0 {
		types.Locales = cfg.Locales.Codes
		types.DefaultLocale = cfg.Locales.Default
	}
	compiled, err := rizom.Compile(types)
	if err != nil {
		return nil, fmt.Errorf("compiling configuration: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}
	log.Debug("starting operation", "operation", operation)

	dbPath := cfg.Database.Path
	if cfg.Database.Type == "memory" {
		dbPath = ":memory:"
	}
	st, err := store.New(dbPath, compiled, log, rizom.RealClock{}, rizom.UUIDGenerator{})
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}

	svc, err := operations.New(compiled, st, log, rizom.RealClock{}, rizom.UUIDGenerator{})
	if err != nil {
		st.Close()
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("creating operations service: %w", err)
	}

	return &App{
		cfg:     cfg,
		types:   compiled,
		store:   st,
		service: svc,
		logFile: logFile,
	}, nil
}

// Service returns the operations entry point.
func (a *App) Service() *operations.Service { return a.service }

// Types returns the compiled document-type configuration.
func (a *App) Types() *rizom.CompiledConfig { return a.types }

// Schema returns the derived relational schema.
func (a *App) Schema() *schema.Schema { return a.service.Schema() }

// GenerateMigrations writes the next migration pair when the schema changed.
// Returns true when files were written.
func (a *App) GenerateMigrations() (bool, error) {
	return migrations.Generate(a.Schema(), a.cfg.Database.MigrationsDir)
}

// Migrate applies pending migrations to the database.
func (a *App) Migrate() error {
	return migrations.MigrateUp(a.store.DB(), a.cfg.Database.MigrationsDir)
}

// MigrationStatus reports whether the database schema is current.
func (a *App) MigrationStatus() error {
	return migrations.Status(a.store.DB(), a.cfg.Database.MigrationsDir)
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
