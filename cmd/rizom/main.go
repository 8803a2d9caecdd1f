package main

import (
	"fmt"
	"os"
	"sort"

	"rizom/internal/app"
	"rizom/internal/config"
	"rizom/internal/rizom"
	"rizom/internal/schema"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Migrate", "Generate").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, siteTypes(), operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "rizom",
	Short: "Headless document engine",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s (%s)\n", cfg.Database.Path, cfg.Database.Type)
		fmt.Printf("Migrations: %s\n", cfg.Database.MigrationsDir)
		return nil
	},
}

// generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate schema migrations from the document-type configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Generate")
		if err != nil {
			return err
		}
		defer a.Close()

		wrote, err := a.GenerateMigrations()
		if err != nil {
			return fmt.Errorf("generating migrations: %w", err)
		}
		if !wrote {
			fmt.Println("Schema unchanged, no migration written")
			return nil
		}
		fmt.Println("Migration written")
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Migrate")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Migrate(); err != nil {
			return err
		}
		fmt.Println("Database is up to date")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database schema status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MigrationStatus(); err != nil {
			return err
		}
		fmt.Println("Database schema is current")
		return nil
	},
}

// types command
var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List compiled document types and their tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		compiled, err := rizom.Compile(siteTypes())
		if err != nil {
			return fmt.Errorf("compiling configuration: %w", err)
		}
		s, err := schema.Build(compiled)
		if err != nil {
			return fmt.Errorf("building schema: %w", err)
		}

		slugs := make([]string, 0, len(s.Types))
		for slug := range s.Types {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)

		for _, slug := range slugs {
			tt := s.Types[slug]
			ct := compiled.Get(slug)
			fmt.Printf("%s (%s", slug, ct.Prototype)
			if tt.Versioned {
				fmt.Printf(", versioned")
			}
			if tt.Draft {
				fmt.Printf(", drafts")
			}
			fmt.Println(")")
			fmt.Printf("  root: %s\n", tt.Root)
			if tt.Versioned {
				fmt.Printf("  versions: %s\n", tt.Content)
			}
			if tt.Locales != nil {
				fmt.Printf("  locales: %s\n", tt.Locales.Name)
			}
			for _, n := range tt.BlockTypeNames() {
				fmt.Printf("  blocks: %s\n", tt.Blocks[n].Name)
			}
			for _, n := range tt.TreeFieldNames() {
				fmt.Printf("  tree: %s\n", tt.Trees[n].Name)
			}
			if tt.Relations != nil {
				fmt.Printf("  relations: %s -> %v\n", tt.Relations.Name, tt.Relations.Targets)
			}
		}
		return nil
	},
}

// ddl command
var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the full CREATE statement set for the configured types",
	RunE: func(cmd *cobra.Command, args []string) error {
		compiled, err := rizom.Compile(siteTypes())
		if err != nil {
			return fmt.Errorf("compiling configuration: %w", err)
		}
		s, err := schema.Build(compiled)
		if err != nil {
			return fmt.Errorf("building schema: %w", err)
		}
		fmt.Print(schema.GenerateDDL(s))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(ddlCmd)
}
