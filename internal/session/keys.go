// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package session

import (
	"crypto/sha256"
	"io"

	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest SESSION_SECRET accepted.
const MinSecretLength = 16

const keyLength = 32

// Keys are the independent keys derived from the session secret.
type Keys struct {
	// Signing authenticates cookie values.
	Signing []byte
	// Encryption seals session documents at rest.
	Encryption []byte
}

// DeriveKeys expands secret into a signing key and an encryption key so that
// neither key is ever used for both purposes.
func DeriveKeys(secret []byte) (Keys, error) {
	if len(secret) < MinSecretLength {
		return Keys{}, oops.Code("SESSION_SECRET_TOO_SHORT").
			With("min_length", MinSecretLength).
			Errorf("session secret must be at least %d bytes", MinSecretLength)
	}

	signing, err := expand(secret, "campusdiaries session cookie signing")
	if err != nil {
		return Keys{}, err
	}
	encryption, err := expand(secret, "campusdiaries session document encryption")
	if err != nil {
		return Keys{}, err
	}
	return Keys{Signing: signing, Encryption: encryption}, nil
}

func expand(secret []byte, info string) ([]byte, error) {
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, oops.Code("SESSION_KEY_DERIVE_FAILED").With("info", info).Wrap(err)
	}
	return key, nil
}
