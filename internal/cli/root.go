// Package cli provides the command-line interface for branchreel.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	logLevel string

	// Global config, loaded before every command
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "branchreel",
	Short: "Branching video playback orchestrator",
	Long: `Branchreel plays interactive video experiences: a main video interrupted
by timed questions and branch points whose choices cut away to clips.

Experiences are YAML definitions imported into the catalog database. The
serve command exposes playback sessions over HTTP and WebSocket.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		// Logs go to stderr so command output stays pipeable
		logger.InitWithWriter(cfg.Logging.Level, cfg.Logging.Pretty, cmd.ErrOrStderr())
		return nil
	},
}

// openCatalog connects to the catalog database and applies migrations.
// The caller closes the returned connection.
func openCatalog() (*db.DB, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		_ = database.Close()
		return nil, err
	}

	return database, nil
}

// closeCatalog closes database, warning on failure.
func closeCatalog(cmd *cobra.Command, database *db.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close database: %v\n", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
}
