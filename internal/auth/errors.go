// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrInvalidCredentials is returned for any failed login. It never reveals
// whether the identifier or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Uniqueness violations reported by UserRepository.Create.
var (
	ErrDuplicateUsername = &ValidationError{Field: "username", Message: "A user with the given username is already registered"}
	ErrDuplicateEmail    = &ValidationError{Field: "email", Message: "A user with the given email is already registered"}
)

// ValidationError describes rejected signup input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports ErrValidation as a match so callers can classify without a type switch.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Error codes attached to oops errors returned by this package.
const (
	CodeInvalidUsername    = "AUTH_INVALID_USERNAME"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeDuplicateUsername  = "AUTH_DUPLICATE_USERNAME"
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
)

// IsValidation reports whether err is a signup validation or uniqueness failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidCredentials reports whether err is a login failure.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// PublicMessage returns text that is safe to show to the end user.
func PublicMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrInvalidCredentials):
		return "Password or username is incorrect"
	default:
		return "Something went wrong"
	}
}
