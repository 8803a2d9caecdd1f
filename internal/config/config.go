// Package config handles the engine's runtime configuration file: where the
// database and migrations live, which locales exist, where logs go. Document
// types are declared in code, not here.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the runtime configuration for a rizom deployment.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Database DatabaseConfig `toml:"database"`
	Locales  LocalesConfig  `toml:"locales"`
}

// DatabaseConfig represents configuration for the document database.
// The Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type          string `toml:"type"`                     // "sqlite" or "memory"
	Path          string `toml:"path,omitempty"`           // only used for type=sqlite
	MigrationsDir string `toml:"migrations_dir,omitempty"` // defaults to <base_dir>/migrations
}

// LocalesConfig lists the locales documents may carry.
type LocalesConfig struct {
	Codes   []string `toml:"codes"`
	Default string   `toml:"default"`
}

// NewConfig creates a new Config with the provided base directory and
// default layout underneath it.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:          "sqlite",
			Path:          filepath.Join(baseDir, "rizom.db"),
			MigrationsDir: filepath.Join(baseDir, "migrations"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Database.MigrationsDir == "" && cfg.BaseDir != "" {
		cfg.Database.MigrationsDir = filepath.Join(cfg.BaseDir, "migrations")
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config, refusing to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
