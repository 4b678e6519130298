// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package auth owns user credentials and authentication for Campus Diaries.
//
// # Domain Types
//
// Users are created exclusively through CredentialStore.Create, which validates
// the username, email and password, derives a random salt and stores only the
// salted argon2id hash. Request handlers never see a User; they work with the
// Principal projection, which carries no credential material.
//
// # Services
//
//   - CredentialStore - signup (Create), credential checks (Verify), principal lookup
//   - LocalStrategy - the username/password Strategy built on CredentialStore
//
// Strategy is the pluggable seam: alternate strategies (tokens, SSO) implement it
// without touching session handling.
//
// # Errors
//
// Signup failures are *ValidationError values (errors.Is(err, ErrValidation)),
// including ErrDuplicateUsername and ErrDuplicateEmail. Login failures are always
// ErrInvalidCredentials; the reason (unknown user or wrong password) is only
// recorded in the oops error context, never in the message.
package auth
