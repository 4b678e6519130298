// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package authtest provides test helpers for the auth package.
package authtest

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/auth"
)

// MemoryUserRepository is a map-backed auth.UserRepository.
// Unique keys are checked and claimed under one lock, so concurrent
// Create calls behave like the database constraints.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.User
	byUsername map[string]ulid.ULID
	byEmail    map[string]ulid.ULID
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[ulid.ULID]*auth.User),
		byUsername: make(map[string]ulid.ULID),
		byEmail:    make(map[string]ulid.ULID),
	}
}

// Create stores a copy of user.
func (r *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	email := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return oops.Code(auth.CodeDuplicateUsername).
			With("username", user.Username).
			Wrap(auth.ErrDuplicateUsername)
	}
	if _, taken := r.byEmail[email]; taken {
		return oops.Code(auth.CodeDuplicateEmail).
			With("email", email).
			Wrap(auth.ErrDuplicateEmail)
	}

	stored := *user
	r.byID[user.ID] = &stored
	r.byUsername[user.Username] = user.ID
	r.byEmail[email] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id)
}

// GetByUsername retrieves a user by exact username.
func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	return r.copyOf(id)
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return r.copyOf(id)
}

// Delete removes a user. The production system never deletes users; tests use
// this to simulate a principal whose record disappeared.
func (r *MemoryUserRepository) Delete(id ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byUsername, user.Username)
	delete(r.byEmail, strings.ToLower(user.Email))
	delete(r.byID, id)
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryUserRepository) copyOf(id ulid.ULID) (*auth.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := *user
	return &out, nil
}

// FastHasher returns an argon2id hasher with minimal cost for tests.
func FastHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    1,
		Memory:  1024,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	})
}

var _ auth.UserRepository = (*MemoryUserRepository)(nil)
