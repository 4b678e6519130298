// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Input validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
	MaxPasswordLength = 128
	MaxEmailLength    = 254
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, underscores and dots
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.]*$`)

// User is a registered account. Username is unique and case-sensitive;
// Email is unique and stored lowercased.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	PasswordSalt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the read-only identity exposed to request handlers.
type Principal struct {
	ID       ulid.ULID
	Username string
	Email    string
}

// Principal projects the user without credential material.
func (u *User) Principal() *Principal {
	return &Principal{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

// newUser builds a validated User from already-hashed credentials.
func newUser(username, email, passwordHash, passwordSalt string) (*User, error) {
	if passwordHash == "" || passwordSalt == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash and salt are required")
	}
	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		PasswordSalt: passwordSalt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func invalid(code, field, msg string) error {
	return oops.Code(code).With("field", field).Wrap(&ValidationError{Field: field, Message: msg})
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters, numbers, underscores and dots
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return invalid(CodeInvalidUsername, "username", "No username was given")
	case len(username) < MinUsernameLength:
		return invalid(CodeInvalidUsername, "username", "Username must be at least 3 characters")
	case len(username) > MaxUsernameLength:
		return invalid(CodeInvalidUsername, "username", "Username must be at most 30 characters")
	case !usernameRegex.MatchString(username):
		return invalid(CodeInvalidUsername, "username",
			"Username must start with a letter and contain only letters, numbers, dots and underscores")
	}
	return nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return invalid(CodeInvalidEmail, "email", "No email was given")
	}
	if len(email) > MaxEmailLength {
		return invalid(CodeInvalidEmail, "email", "Email address is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid(CodeInvalidEmail, "email", "Email address is not valid")
	}
	return nil
}

// ValidatePassword checks password length bounds.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return invalid(CodeInvalidPassword, "password", "No password was given")
	case len(password) < MinPasswordLength:
		return invalid(CodeInvalidPassword, "password", "Password must be at least 6 characters")
	case len(password) > MaxPasswordLength:
		return invalid(CodeInvalidPassword, "password", "Password must be at most 128 characters")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user atomically. It returns an error wrapping
	// ErrDuplicateUsername or ErrDuplicateEmail when a unique key is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact (case-sensitive) username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)
}
