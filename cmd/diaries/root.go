// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the diaries CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diaries",
		Short: "Campus Diaries - a campus content-sharing site",
		Long: `Campus Diaries serves the site with signup, login and logout on
PostgreSQL-backed accounts and sliding seven-day sessions.

Configuration comes from the environment: SESSION_SECRET, DATABASE_URL
and PORT, plus optional SESSION_BACKEND, REDIS_URL and LOG_FORMAT.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}
