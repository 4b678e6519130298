// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// CookieSigner wraps a session token in an HS256-signed value so tampered
// cookies are rejected before the store is consulted.
type CookieSigner struct {
	key    []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewCookieSigner creates a signer from a derived signing key.
func NewCookieSigner(key []byte) (*CookieSigner, error) {
	if len(key) < MinSecretLength {
		return nil, oops.Code("SESSION_SIGNER_INIT_FAILED").Errorf("signing key must be at least %d bytes", MinSecretLength)
	}
	return &CookieSigner{
		key:    key,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
		now:    time.Now,
	}, nil
}

// Sign returns the cookie value for token.
func (s *CookieSigner) Sign(token string) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       token,
		IssuedAt: jwt.NewNumericDate(s.now()),
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", oops.Code("SESSION_COOKIE_SIGN_FAILED").Wrap(err)
	}
	return value, nil
}

// Verify returns the token inside a cookie value. Expiry is enforced by the
// store, not by the cookie, so only the signature and token shape are checked.
func (s *CookieSigner) Verify(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return "", oops.Code("SESSION_COOKIE_INVALID").Wrap(err)
	}
	if !validToken(claims.ID) {
		return "", oops.Code("SESSION_COOKIE_INVALID").Errorf("cookie does not carry a session token")
	}
	return claims.ID, nil
}
