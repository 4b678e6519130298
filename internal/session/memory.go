// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests. Records do
// not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a MemoryStore that judges expiry by now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: now}
}

// Get returns the live record for key.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(key)
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Payload = slices.Clone(rec.Payload)
	return rec, nil
}

// Set replaces the record for key.
func (s *MemoryStore) Set(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Payload = slices.Clone(rec.Payload)
	s.records[key] = rec
	return nil
}

// Touch moves the expiry of a live record.
func (s *MemoryStore) Touch(_ context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(key)
	if !ok {
		return ErrNotFound
	}
	rec.ExpiresAt = expiresAt
	s.records[key] = rec
	return nil
}

// Destroy deletes the record for key.
func (s *MemoryStore) Destroy(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// DeleteExpired removes records that expired before now.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.records {
		if !rec.ExpiresAt.After(now) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of records held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// live returns the record for key when it has not expired. Caller holds mu.
func (s *MemoryStore) live(key string) (Record, bool) {
	rec, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	if !rec.ExpiresAt.After(s.now()) {
		delete(s.records, key)
		return Record{}, false
	}
	return rec, true
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pruner = (*MemoryStore)(nil)
)
