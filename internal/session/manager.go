// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/observability"
	"github.com/campusdiaries/campusdiaries/pkg/errutil"
)

// DefaultTTL is the sliding lifetime of a session.
const DefaultTTL = 7 * 24 * time.Hour

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithTouchAfter lets Save skip persisting an unmodified session whose record
// was written less than d ago. Zero, the default, refreshes the expiry on
// every save.
func WithTouchAfter(d time.Duration) ManagerOption {
	return func(m *Manager) { m.touchAfter = d }
}

// WithLogger sets the logger for store failures.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager loads and persists sessions in a Store.
//
// Store failures never fail a request: Load falls back to a fresh session and
// Save leaves the in-memory state as the only copy for the current response.
// Both are logged and counted.
type Manager struct {
	store      Store
	codec      *SealedCodec
	ttl        time.Duration
	touchAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a Manager.
func NewManager(store Store, codec *SealedCodec, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if codec == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("session codec is required")
	}
	m := &Manager{
		store:  store,
		codec:  codec,
		ttl:    DefaultTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_TTL").With("ttl", m.ttl.String()).Errorf("session ttl must be positive")
	}
	return m, nil
}

// TTL returns the sliding session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// New mints an anonymous session with an empty document.
func (m *Manager) New() (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	return newSession(token), nil
}

// Load returns the session for token. A missing, malformed, expired or
// unreadable token yields a fresh New session; only failing to mint a new
// token is an error.
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	if !validToken(token) {
		return m.New()
	}

	key := storeKey(token)
	rec, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return m.New()
	case err != nil:
		// Keep the token so the client's real record survives the outage.
		// Save never writes a degraded session; Regenerate is the way out.
		m.storeFailed(ctx, "get", err)
		s := newSession(token)
		s.modified = false
		s.degraded = true
		return s, nil
	}

	now := m.now()
	if !rec.ExpiresAt.After(now) {
		return m.New()
	}

	doc, err := m.codec.Decode(key, rec.Payload)
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger, "discarding unreadable session", err)
		return m.New()
	}

	s := newSession(token)
	s.state = StateActive
	s.modified = false
	s.expiresAt = rec.ExpiresAt
	s.lastWrite = rec.ExpiresAt.Add(-m.ttl)
	if err := doc.apply(s); err != nil {
		errutil.LogErrorContext(ctx, m.logger, "discarding unreadable session", err)
		return m.New()
	}
	return s, nil
}

// Save persists s and slides its expiry. A modified or New session is
// written whole in one Set; an unmodified one only has its expiry touched.
// Failures are logged and counted and s keeps its in-memory state.
// A degraded session lives for one response only and is never written.
func (m *Manager) Save(ctx context.Context, s *Session) {
	if s == nil || s.state == StateDestroyed || s.degraded {
		return
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	key := storeKey(s.token)

	if !s.modified && s.state == StateActive && m.touchAfter > 0 && now.Sub(s.lastWrite) < m.touchAfter {
		return
	}

	if !s.modified && s.state == StateActive {
		err := m.store.Touch(ctx, key, expiresAt)
		if err == nil {
			m.written(s, now, expiresAt)
			return
		}
		if !errors.Is(err, ErrNotFound) {
			m.storeFailed(ctx, "touch", err)
			return
		}
		// The record vanished after Load; write it back whole.
	}

	payload, err := m.codec.Encode(key, s.document())
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger, "session encode failed", err)
		return
	}
	if err := m.store.Set(ctx, key, Record{Payload: payload, ExpiresAt: expiresAt}); err != nil {
		m.storeFailed(ctx, "set", err)
		return
	}
	m.written(s, now, expiresAt)
}

// Destroy deletes the record behind s. Later loads of its token yield a New session.
func (m *Manager) Destroy(ctx context.Context, s *Session) {
	if s == nil || s.state == StateDestroyed {
		return
	}
	if s.state == StateActive || s.degraded {
		if err := m.store.Destroy(ctx, storeKey(s.token)); err != nil {
			m.storeFailed(ctx, "destroy", err)
		}
	}
	s.state = StateDestroyed
}

// Regenerate destroys s and returns a New session under a fresh token. The
// principal and, when keepData is set, the data carry over.
func (m *Manager) Regenerate(ctx context.Context, s *Session, keepData bool) (*Session, error) {
	next, err := m.New()
	if err != nil {
		return nil, err
	}
	if s != nil {
		next.principal = s.principal
		if keepData {
			maps.Copy(next.data, s.data)
		}
		m.Destroy(ctx, s)
	}
	return next, nil
}

func (m *Manager) written(s *Session, now, expiresAt time.Time) {
	s.state = StateActive
	s.modified = false
	s.degraded = false
	s.lastWrite = now
	s.expiresAt = expiresAt
}

func (m *Manager) storeFailed(ctx context.Context, op string, err error) {
	observability.RecordSessionStoreError(op)
	errutil.LogErrorContext(ctx, m.logger, "session store "+op+" failed",
		oops.Code("SESSION_STORE_UNAVAILABLE").With("operation", op).Wrap(err))
}
