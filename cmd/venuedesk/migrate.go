package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator("applied", (*migrate.Migrate).Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every schema migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator("rolled back", (*migrate.Migrate).Down)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// newMigrator opens golang-migrate against the configured database. The
// document and account tables only exist in postgres, so the memory driver
// is rejected.
func newMigrator() (*migrate.Migrate, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.UsesPostgres() {
		return nil, errNeedsPostgres
	}
	m, err := migrate.New(cfg.MigrationsSource(), cfg.DatabaseURLForMigrate())
	if err != nil {
		return nil, fmt.Errorf("opening migrations: %w", err)
	}
	return m, nil
}

func withMigrator(verb string, step func(*migrate.Migrate) error) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := step(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("schema already current")
			return nil
		}
		return err
	}
	version, dirty, _ := m.Version()
	slog.Info("migrations "+verb, "version", version, "dirty", dirty)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d", version)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
