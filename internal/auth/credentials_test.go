// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	"github.com/campusdiaries/campusdiaries/internal/auth/authtest"
	"github.com/campusdiaries/campusdiaries/internal/auth/mocks"
	"github.com/campusdiaries/campusdiaries/pkg/errutil"
)

func newMemoryStore(t *testing.T) (*auth.CredentialStore, *authtest.MemoryUserRepository) {
	t.Helper()
	repo := authtest.NewMemoryUserRepository()
	store, err := auth.NewCredentialStore(repo, authtest.FastHasher())
	require.NoError(t, err)
	return store, repo
}

func TestNewCredentialStore_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.UserRepository
		hasher      auth.PasswordHasher
		logger      *slog.Logger
		expectError string
	}{
		{
			name:        "nil users repository",
			hasher:      mocks.NewMockPasswordHasher(t),
			logger:      slog.Default(),
			expectError: "users repository is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockUserRepository(t),
			logger:      slog.Default(),
			expectError: "password hasher is required",
		},
		{
			name:        "nil logger",
			users:       mocks.NewMockUserRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "logger is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := auth.NewCredentialStoreWithLogger(tt.users, tt.hasher, tt.logger)
			require.Error(t, err)
			assert.Nil(t, store)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestCredentialStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores salted hash and never the raw password", func(t *testing.T) {
		store, repo := newMemoryStore(t)

		user, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "a@x.com", user.Email)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEmpty(t, user.PasswordSalt)
		assert.NotContains(t, user.PasswordHash, "secret1")
		assert.Equal(t, 1, repo.Len())

		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.PasswordHash, stored.PasswordHash)
		assert.Equal(t, user.PasswordSalt, stored.PasswordSalt)
	})

	t.Run("normalizes email", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		user, err := store.Create(ctx, "bob", "  Bob@Example.COM ", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", user.Email)
	})

	t.Run("duplicate username fails and leaves first user intact", func(t *testing.T) {
		store, repo := newMemoryStore(t)

		first, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)

		_, err = store.Create(ctx, "alice", "other@x.com", "another1")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
		assert.True(t, auth.IsValidation(err))
		errutil.AssertErrorCode(t, err, auth.CodeDuplicateUsername)

		assert.Equal(t, 1, repo.Len())
		verified, err := store.Verify(ctx, "alice", "secret1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, verified.ID)
	})

	t.Run("duplicate email fails", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		_, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)

		_, err = store.Create(ctx, "alice2", "A@X.com", "secret1")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
		assert.True(t, auth.IsValidation(err))
	})

	t.Run("usernames are case-sensitive", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		_, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)
		_, err = store.Create(ctx, "Alice", "b@x.com", "secret1")
		require.NoError(t, err)
	})

	t.Run("concurrent duplicates admit exactly one", func(t *testing.T) {
		store, repo := newMemoryStore(t)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.Create(ctx, "racer", "racer@x.com", "secret1")
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, auth.IsValidation(err))
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("invalid input is a validation error", func(t *testing.T) {
		store, repo := newMemoryStore(t)

		tests := []struct {
			name     string
			username string
			email    string
			password string
			code     string
		}{
			{"empty username", "", "a@x.com", "secret1", auth.CodeInvalidUsername},
			{"short username", "al", "a@x.com", "secret1", auth.CodeInvalidUsername},
			{"username with spaces", "al ice", "a@x.com", "secret1", auth.CodeInvalidUsername},
			{"empty email", "alice", "", "secret1", auth.CodeInvalidEmail},
			{"malformed email", "alice", "not-an-email", "secret1", auth.CodeInvalidEmail},
			{"display-name email", "alice", "Alice <a@x.com>", "secret1", auth.CodeInvalidEmail},
			{"empty password", "alice", "a@x.com", "", auth.CodeInvalidPassword},
			{"short password", "alice", "a@x.com", "abc", auth.CodeInvalidPassword},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := store.Create(ctx, tt.username, tt.email, tt.password)
				require.Error(t, err)
				assert.True(t, auth.IsValidation(err))
				errutil.AssertErrorCode(t, err, tt.code)
			})
		}
		assert.Equal(t, 0, repo.Len())
	})

	t.Run("repository failure is not a validation error", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewCredentialStore(users, hasher)
		require.NoError(t, err)

		hasher.On("Hash", "secret1").Return("$argon2id$v=19$m=1024,t=1,p=1$aGFzaA", "c2FsdA", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(errors.New("connection refused"))

		_, err = store.Create(ctx, "alice", "a@x.com", "secret1")
		require.Error(t, err)
		assert.False(t, auth.IsValidation(err))
		errutil.AssertErrorCode(t, err, "AUTH_SIGNUP_FAILED")
		assert.Equal(t, "Something went wrong", auth.PublicMessage(err))
	})

	t.Run("logs registration", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		store, err := auth.NewCredentialStoreWithLogger(authtest.NewMemoryUserRepository(), authtest.FastHasher(), logger)
		require.NoError(t, err)

		_, err = store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "user registered")
		assert.NotContains(t, buf.String(), "secret1")
	})
}

func TestCredentialStore_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips by username and by email", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		created, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)

		byName, err := store.Verify(ctx, "alice", "secret1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)
		assert.Equal(t, "alice", byName.Principal().Username)

		byEmail, err := store.Verify(ctx, "A@X.COM", "secret1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("wrong password and unknown user fail identically", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		_, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)

		_, wrongPw := store.Verify(ctx, "alice", "wrong")
		_, unknown := store.Verify(ctx, "nobody", "secret1")

		for _, err := range []error{wrongPw, unknown} {
			require.Error(t, err)
			assert.True(t, auth.IsInvalidCredentials(err))
			errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		}
		assert.Equal(t, wrongPw.Error(), unknown.Error())
		assert.Equal(t, auth.PublicMessage(wrongPw), auth.PublicMessage(unknown))

		errutil.AssertErrorContext(t, wrongPw, "reason", "password_mismatch")
		errutil.AssertErrorContext(t, unknown, "reason", "not_found")
	})

	t.Run("username lookup is case-sensitive", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		_, err := store.Create(ctx, "alice", "a@x.com", "secret1")
		require.NoError(t, err)

		_, err = store.Verify(ctx, "ALICE", "secret1")
		assert.True(t, auth.IsInvalidCredentials(err))
	})

	t.Run("unknown user still runs verification", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewCredentialStore(users, hasher)
		require.NoError(t, err)

		users.On("GetByUsername", ctx, "ghost").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "pw", mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(false, nil)

		_, err = store.Verify(ctx, "ghost", "pw")
		assert.True(t, auth.IsInvalidCredentials(err))
		hasher.AssertNumberOfCalls(t, "Verify", 1)
	})

	t.Run("lookup failure is not invalid credentials", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewCredentialStore(users, hasher)
		require.NoError(t, err)

		users.On("GetByUsername", ctx, "alice").Return(nil, errors.New("connection reset"))

		_, err = store.Verify(ctx, "alice", "pw")
		require.Error(t, err)
		assert.False(t, auth.IsInvalidCredentials(err))
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("corrupt stored hash is an internal error", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		store, err := auth.NewCredentialStore(users, authtest.FastHasher())
		require.NoError(t, err)

		users.On("GetByUsername", ctx, "alice").Return(&auth.User{
			ID:           ulid.Make(),
			Username:     "alice",
			PasswordHash: "garbage",
			PasswordSalt: "c2FsdA",
		}, nil)

		_, err = store.Verify(ctx, "alice", "secret1")
		require.Error(t, err)
		assert.False(t, auth.IsInvalidCredentials(err))
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
	})
}

func TestCredentialStore_Principal(t *testing.T) {
	ctx := context.Background()
	store, repo := newMemoryStore(t)

	user, err := store.Create(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	p, err := store.Principal(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, &auth.Principal{ID: user.ID, Username: "alice", Email: "a@x.com"}, p)

	repo.Delete(user.ID)
	_, err = store.Principal(ctx, user.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
