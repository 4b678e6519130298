// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash and dummyPasswordSalt are used when a user doesn't exist so
// that verification still runs and response time stays uniform.
// They are NOT credentials and never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention.
const (
	dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	dummyPasswordSalt = "AAAAAAAAAAAAAAAAAAAAAA"
)

// CredentialStore owns user records and their password hashes.
type CredentialStore struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewCredentialStore creates a CredentialStore that logs to slog.Default().
func NewCredentialStore(users UserRepository, hasher PasswordHasher) (*CredentialStore, error) {
	return NewCredentialStoreWithLogger(users, hasher, slog.Default())
}

// NewCredentialStoreWithLogger creates a CredentialStore with an explicit logger.
func NewCredentialStoreWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*CredentialStore, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &CredentialStore{users: users, hasher: hasher, logger: logger}, nil
}

// Create registers a new user. The raw password is hashed under a fresh salt
// and never stored. Validation and uniqueness failures are *ValidationError.
func (s *CredentialStore) Create(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := newUser(username, email, hash, salt)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "build user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if IsValidation(err) {
			return nil, err
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "persist user").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"username", user.Username,
	)
	return user, nil
}

// Verify checks a password for the user named by identifier, which may be a
// username or an email address. Any failure to match is ErrInvalidCredentials;
// the internal reason lives only in the error context.
func (s *CredentialStore) Verify(ctx context.Context, identifier, password string) (*User, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user      *User
		lookupErr error
	)
	switch {
	case identifier == "":
		lookupErr = ErrNotFound
	case strings.Contains(identifier, "@"):
		user, lookupErr = s.users.GetByEmail(ctx, NormalizeEmail(identifier))
	default:
		user, lookupErr = s.users.GetByUsername(ctx, identifier)
	}

	targetHash, targetSalt := dummyPasswordHash, dummyPasswordSalt
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "lookup user").
				Wrap(lookupErr)
		}
	} else {
		targetHash, targetSalt = user.PasswordHash, user.PasswordSalt
		userExists = true
	}

	// Always verify so unknown users cost the same as wrong passwords.
	valid, verifyErr := s.hasher.Verify(password, targetHash, targetSalt)
	if verifyErr != nil && userExists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	if !userExists {
		return nil, oops.Code(CodeInvalidCredentials).
			With("reason", "not_found").
			Wrap(ErrInvalidCredentials)
	}
	if !valid {
		return nil, oops.Code(CodeInvalidCredentials).
			With("reason", "password_mismatch").
			With("user_id", user.ID.String()).
			Wrap(ErrInvalidCredentials)
	}

	return user, nil
}

// Principal resolves the principal for a stored user ID.
func (s *CredentialStore) Principal(ctx context.Context, id ulid.ULID) (*Principal, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("AUTH_PRINCIPAL_LOOKUP_FAILED").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user.Principal(), nil
}
