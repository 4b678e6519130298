// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// Credentials are the fields submitted by a login form.
type Credentials struct {
	// Identifier is a username or an email address.
	Identifier string
	Password   string
}

// Strategy authenticates submitted credentials. Implementations are stateless
// and know nothing about sessions.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Authenticate returns the principal for valid credentials. Rejected
	// credentials yield an error matching ErrInvalidCredentials.
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
}

// CredentialVerifier is the part of CredentialStore that LocalStrategy needs.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, password string) (*User, error)
}

// LocalStrategy authenticates against locally stored password hashes.
type LocalStrategy struct {
	verifier CredentialVerifier
}

// NewLocalStrategy creates a LocalStrategy.
func NewLocalStrategy(verifier CredentialVerifier) (*LocalStrategy, error) {
	if verifier == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credential verifier is required")
	}
	return &LocalStrategy{verifier: verifier}, nil
}

// Name returns "local".
func (s *LocalStrategy) Name() string {
	return "local"
}

// Authenticate verifies the credentials and projects the user to a Principal.
func (s *LocalStrategy) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	user, err := s.verifier.Verify(ctx, creds.Identifier, creds.Password)
	if err != nil {
		return nil, err //nolint:wrapcheck // CredentialStore errors already carry codes
	}
	return user.Principal(), nil
}

var (
	_ Strategy           = (*LocalStrategy)(nil)
	_ CredentialVerifier = (*CredentialStore)(nil)
)
