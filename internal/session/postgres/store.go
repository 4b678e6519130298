// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package postgres provides a PostgreSQL session store.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/session"
	"github.com/campusdiaries/campusdiaries/internal/store"
)

// Store implements session.Store on the sessions table. Expired rows are
// invisible to reads and are removed by DeleteExpired.
type Store struct {
	pool store.Pool
	now  func() time.Time
}

// NewStore creates a new Store.
func NewStore(pool store.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Get returns the live record for key.
func (s *Store) Get(ctx context.Context, key string) (session.Record, error) {
	var rec session.Record
	err := s.pool.QueryRow(ctx, `
		SELECT data, expires_at FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, key, s.now()).Scan(&rec.Payload, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, oops.Code("SESSION_GET_FAILED").
			With("operation", "select session").
			Wrap(err)
	}
	return rec, nil
}

// Set upserts the whole record in one statement.
func (s *Store) Set(ctx context.Context, key string, rec session.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, data, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (token_hash) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = now()
	`, key, rec.Payload, rec.ExpiresAt)
	if err != nil {
		return oops.Code("SESSION_SET_FAILED").
			With("operation", "upsert session").
			Wrap(err)
	}
	return nil
}

// Touch moves the expiry of a live record.
func (s *Store) Touch(ctx context.Context, key string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET expires_at = $2, updated_at = now()
		WHERE token_hash = $1 AND expires_at > $3
	`, key, expiresAt, s.now())
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "touch session").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Destroy deletes the record for key.
func (s *Store) Destroy(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, key)
	if err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes rows that expired at or before now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ session.Store  = (*Store)(nil)
	_ session.Pruner = (*Store)(nil)
)
