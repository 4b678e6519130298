// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	sessionpostgres "github.com/campusdiaries/campusdiaries/internal/session/postgres"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions from PostgreSQL",
		Long: `Delete session rows whose expiry has passed. Expired sessions are never
served, so pruning only reclaims space. Redis expires keys on its own.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsPrune(cmd.Context(), cmd, nil)
		},
	})

	return cmd
}

func runSessionsPrune(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	databaseURL, err := getDatabaseURL(deps)
	if err != nil {
		return err
	}

	db, err := deps.DatabaseFactory(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	removed, err := sessionpostgres.NewStore(db).DeleteExpired(ctx, time.Now())
	if err != nil {
		return oops.Code("SESSION_PRUNE_FAILED").Wrap(err)
	}

	cmd.Printf("Removed %d expired sessions\n", removed)
	return nil
}
