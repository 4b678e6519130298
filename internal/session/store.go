// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates that no live record exists for a key.
var ErrNotFound = errors.New("session not found")

// Record is what a Store holds for one session: an opaque sealed payload and
// its absolute expiry.
type Record struct {
	Payload   []byte
	ExpiresAt time.Time
}

// Store is the durable backend behind a Manager. Keys are derived from
// session tokens and never equal them.
//
// Implementations must treat a record whose ExpiresAt has passed as missing,
// and Set must replace the whole record in a single write.
type Store interface {
	// Get returns the live record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Set creates or replaces the record for key.
	Set(ctx context.Context, key string, rec Record) error

	// Touch moves the expiry of an existing live record. It returns
	// ErrNotFound when there is nothing to touch.
	Touch(ctx context.Context, key string, expiresAt time.Time) error

	// Destroy deletes the record for key. Destroying a missing key is not an error.
	Destroy(ctx context.Context, key string) error
}

// Pruner is implemented by stores that keep expired rows until swept.
type Pruner interface {
	// DeleteExpired removes records that expired before now and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
