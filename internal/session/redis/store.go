// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package redis provides a Redis session store. Expiry is enforced by Redis
// key TTLs, so nothing needs sweeping.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/session"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "diaries:sess:"

// Store implements session.Store on Redis strings.
type Store struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a Store. An empty prefix selects DefaultPrefix.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

// Get reads the payload and its remaining TTL in one transaction.
func (s *Store) Get(ctx context.Context, key string) (session.Record, error) {
	var (
		get  *goredis.StringCmd
		pttl *goredis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.Get(ctx, s.prefix+key)
		pttl = pipe.PTTL(ctx, s.prefix+key)
		return nil
	})
	if errors.Is(err, goredis.Nil) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	payload, err := get.Bytes()
	if err != nil {
		return session.Record{}, oops.Code("SESSION_GET_FAILED").
			With("operation", "read session payload").
			Wrap(err)
	}
	ttl := pttl.Val()
	if ttl <= 0 {
		// Keys are always written with a TTL; one without is not a live session.
		return session.Record{}, session.ErrNotFound
	}
	return session.Record{Payload: payload, ExpiresAt: s.now().Add(ttl)}, nil
}

// Set writes payload and TTL in a single SET.
func (s *Store) Set(ctx context.Context, key string, rec session.Record) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Destroy(ctx, key)
	}
	if err := s.client.Set(ctx, s.prefix+key, rec.Payload, ttl).Err(); err != nil {
		return oops.Code("SESSION_SET_FAILED").
			With("operation", "set session").
			Wrap(err)
	}
	return nil
}

// Touch moves the key's expiry with PEXPIREAT.
func (s *Store) Touch(ctx context.Context, key string, expiresAt time.Time) error {
	ok, err := s.client.PExpireAt(ctx, s.prefix+key, expiresAt).Result()
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "touch session").
			Wrap(err)
	}
	if !ok {
		return session.ErrNotFound
	}
	return nil
}

// Destroy deletes the key.
func (s *Store) Destroy(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// Ping checks connectivity; the server uses it for readiness.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("SESSION_STORE_UNAVAILABLE").With("operation", "ping redis").Wrap(err)
	}
	return nil
}

var _ session.Store = (*Store)(nil)
