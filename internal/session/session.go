// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package session persists per-client state behind an opaque token.
//
// A Session moves New -> Active -> Destroyed. A record whose expiry has
// passed is never surfaced: Manager.Load treats it exactly like a missing
// record and hands back a fresh New session.
//
// Sessions are request-scoped values and are not safe for concurrent use.
// Two requests carrying the same token each load their own copy; whichever
// saves last wins. There is no locking or version check across requests.
package session

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// State is the lifecycle position of a Session.
type State int

// Session states.
const (
	StateNew State = iota
	StateActive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Session is one client's server-side state.
type Session struct {
	token     string
	state     State
	principal ulid.ULID
	data      map[string]json.RawMessage
	expiresAt time.Time

	// lastWrite is when the backing record was last Set or Touched.
	lastWrite time.Time
	modified  bool
	// degraded marks a session minted because the store could not be read.
	degraded bool
}

func newSession(token string) *Session {
	return &Session{
		token:    token,
		state:    StateNew,
		data:     make(map[string]json.RawMessage),
		modified: true,
	}
}

// Token returns the opaque session token carried by the cookie.
func (s *Session) Token() string { return s.token }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// ExpiresAt returns the absolute expiry. It is zero until the first save.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Modified reports whether the document changed since it was loaded or saved.
func (s *Session) Modified() bool { return s.modified }

// Degraded reports whether the store was unreadable when this session was loaded.
func (s *Session) Degraded() bool { return s.degraded }

// PrincipalID returns the bound user ID; ok is false for anonymous sessions.
func (s *Session) PrincipalID() (id ulid.ULID, ok bool) {
	if s.principal.IsZero() {
		return ulid.ULID{}, false
	}
	return s.principal, true
}

// SetPrincipal binds the session to a user.
func (s *Session) SetPrincipal(id ulid.ULID) {
	if s.principal == id {
		return
	}
	s.principal = id
	s.modified = true
}

// ClearPrincipal makes the session anonymous.
func (s *Session) ClearPrincipal() {
	s.SetPrincipal(ulid.ULID{})
}

// Get decodes the value stored under key into v. ok is false when the key is absent.
func (s *Session) Get(key string, v any) (ok bool, err error) {
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, oops.Code("SESSION_DATA_DECODE_FAILED").With("key", key).Wrap(err)
	}
	return true, nil
}

// Put stores v under key.
func (s *Session) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return oops.Code("SESSION_DATA_ENCODE_FAILED").With("key", key).Wrap(err)
	}
	s.data[key] = raw
	s.modified = true
	return nil
}

// Delete removes key. Deleting an absent key does not mark the session modified.
func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.modified = true
}

// Clear removes all data, leaving the principal in place.
func (s *Session) Clear() {
	if len(s.data) == 0 {
		return
	}
	clear(s.data)
	s.modified = true
}

// Has reports whether key is present.
func (s *Session) Has(key string) bool {
	_, ok := s.data[key]
	return ok
}

// document is the persisted form of a Session, sealed before it reaches a Store.
type document struct {
	PrincipalID string                     `json:"principal_id,omitempty"`
	Data        map[string]json.RawMessage `json:"data,omitempty"`
}

func (s *Session) document() document {
	doc := document{Data: maps.Clone(s.data)}
	if id, ok := s.PrincipalID(); ok {
		doc.PrincipalID = id.String()
	}
	return doc
}

func (d document) apply(s *Session) error {
	if d.PrincipalID != "" {
		id, err := ulid.Parse(d.PrincipalID)
		if err != nil {
			return oops.Code("SESSION_DOCUMENT_INVALID").With("field", "principal_id").Wrap(err)
		}
		s.principal = id
	}
	if d.Data != nil {
		s.data = d.Data
	}
	return nil
}
