// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/campusdiaries/campusdiaries/internal/store"
)

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies every pending migration.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations for users and sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, nil)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateDown(cmd, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateStatus(cmd, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this to
recover after a migration failed part way through.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, args[0], nil)
		},
	})

	return cmd
}

// getDatabaseURL returns DATABASE_URL from deps, failing when it is empty.
func getDatabaseURL(deps *Deps) (string, error) {
	url := deps.DatabaseURLGetter()
	if url == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return url, nil
}

// withMigrator opens a migrator, runs fn and closes it.
func withMigrator(deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	databaseURL, err := getDatabaseURL(deps)
	if err != nil {
		return err
	}

	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}

	runErr := fn(migrator)
	closeErr := migrator.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(closeErr)
	}
	return nil
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	return withMigrator(deps, func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, deps *Deps) error {
	return withMigrator(deps, func(m Migrator) error {
		cmd.Println("Rolling back migrations...")
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
		}
		cmd.Println("Rollback completed successfully")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, deps *Deps) error {
	return withMigrator(deps, func(m Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return oops.Code("MIGRATION_STATUS_FAILED").With("operation", "read version").Wrap(err)
		}
		pending, err := m.Pending()
		if err != nil {
			return oops.Code("MIGRATION_STATUS_FAILED").With("operation", "list pending").Wrap(err)
		}

		state := "clean"
		if dirty {
			state = "dirty"
		}
		cmd.Printf("Current version: %d (%s)\n", version, state)
		if len(pending) == 0 {
			cmd.Println("No pending migrations")
			return nil
		}
		cmd.Printf("Pending migrations: %d\n", len(pending))
		for _, v := range pending {
			name, err := store.MigrationName(v)
			if err != nil || name == "" {
				name = fmt.Sprintf("%06d", v)
			}
			cmd.Printf("  %s\n", name)
		}
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, arg string, deps *Deps) error {
	version, err := parseForceVersion(arg)
	if err != nil {
		return err
	}
	return withMigrator(deps, func(m Migrator) error {
		if err := m.Force(version); err != nil {
			return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
		}
		cmd.Printf("Forced schema version to %d\n", version)
		return nil
	})
}

// parseForceVersion reads a leading integer from s, ignoring trailing text.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
