// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

//go:build integration

package store_test

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/campusdiaries/campusdiaries/internal/auth"
	authpostgres "github.com/campusdiaries/campusdiaries/internal/auth/postgres"
	"github.com/campusdiaries/campusdiaries/internal/session"
	sessionpostgres "github.com/campusdiaries/campusdiaries/internal/session/postgres"
	"github.com/campusdiaries/campusdiaries/internal/store"
)

var _ = Describe("Migrator", func() {
	It("reports the latest version with nothing pending", func() {
		migrator, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(Equal(uint(2)))

		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})

	It("treats a repeated Up as a no-op", func() {
		migrator, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		Expect(migrator.Up()).To(Succeed())
	})
})

var _ = Describe("UserRepository", func() {
	var (
		repo        *authpostgres.UserRepository
		credentials *auth.CredentialStore
	)

	BeforeEach(func() {
		env.truncate()
		repo = authpostgres.NewUserRepository(env.pool)
		var err error
		credentials, err = auth.NewCredentialStore(repo, auth.NewArgon2idHasher())
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates a user and finds it by id, username and email", func() {
		user, err := credentials.Create(env.ctx, "maria", "Maria@Campus.edu", "secret1")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Email).To(Equal("maria@campus.edu"))

		byID, err := repo.GetByID(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Username).To(Equal("maria"))
		Expect(byID.PasswordHash).NotTo(ContainSubstring("secret1"))

		byName, err := repo.GetByUsername(env.ctx, "maria")
		Expect(err).NotTo(HaveOccurred())
		Expect(byName.ID).To(Equal(user.ID))

		byEmail, err := repo.GetByEmail(env.ctx, "maria@campus.edu")
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(user.ID))
	})

	It("keeps usernames case-sensitive", func() {
		_, err := credentials.Create(env.ctx, "maria", "a@campus.edu", "secret1")
		Expect(err).NotTo(HaveOccurred())

		_, err = credentials.Create(env.ctx, "Maria", "b@campus.edu", "secret1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects duplicate usernames and emails without partial rows", func() {
		_, err := credentials.Create(env.ctx, "maria", "maria@campus.edu", "secret1")
		Expect(err).NotTo(HaveOccurred())

		_, err = credentials.Create(env.ctx, "maria", "other@campus.edu", "secret1")
		Expect(errors.Is(err, auth.ErrDuplicateUsername)).To(BeTrue())

		_, err = credentials.Create(env.ctx, "other", "MARIA@campus.edu", "secret1")
		Expect(errors.Is(err, auth.ErrDuplicateEmail)).To(BeTrue())

		var count int
		Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM users`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})

	It("verifies credentials by username or email", func() {
		_, err := credentials.Create(env.ctx, "maria", "maria@campus.edu", "secret1")
		Expect(err).NotTo(HaveOccurred())

		_, err = credentials.Verify(env.ctx, "maria", "secret1")
		Expect(err).NotTo(HaveOccurred())
		_, err = credentials.Verify(env.ctx, "MARIA@campus.edu", "secret1")
		Expect(err).NotTo(HaveOccurred())

		_, err = credentials.Verify(env.ctx, "maria", "wrong!")
		Expect(auth.IsInvalidCredentials(err)).To(BeTrue())
	})

	It("returns ErrNotFound for unknown users", func() {
		_, err := repo.GetByID(env.ctx, ulid.Make())
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("Session store", func() {
	var sessions *sessionpostgres.Store

	BeforeEach(func() {
		env.truncate()
		sessions = sessionpostgres.NewStore(env.pool)
	})

	It("round-trips, touches and destroys a record", func() {
		expires := time.Now().Add(time.Hour).Truncate(time.Microsecond)
		Expect(sessions.Set(env.ctx, "k1", session.Record{Payload: []byte("sealed"), ExpiresAt: expires})).To(Succeed())

		rec, err := sessions.Get(env.ctx, "k1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Payload).To(Equal([]byte("sealed")))
		Expect(rec.ExpiresAt).To(BeTemporally("==", expires))

		later := expires.Add(time.Hour)
		Expect(sessions.Touch(env.ctx, "k1", later)).To(Succeed())
		rec, err = sessions.Get(env.ctx, "k1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ExpiresAt).To(BeTemporally("==", later))

		Expect(sessions.Destroy(env.ctx, "k1")).To(Succeed())
		_, err = sessions.Get(env.ctx, "k1")
		Expect(errors.Is(err, session.ErrNotFound)).To(BeTrue())
		Expect(sessions.Destroy(env.ctx, "k1")).To(Succeed())
	})

	It("hides expired records and prunes them", func() {
		past := time.Now().Add(-time.Minute)
		Expect(sessions.Set(env.ctx, "old", session.Record{Payload: []byte("x"), ExpiresAt: past})).To(Succeed())
		Expect(sessions.Set(env.ctx, "live", session.Record{Payload: []byte("y"), ExpiresAt: time.Now().Add(time.Hour)})).To(Succeed())

		_, err := sessions.Get(env.ctx, "old")
		Expect(errors.Is(err, session.ErrNotFound)).To(BeTrue())
		Expect(errors.Is(sessions.Touch(env.ctx, "old", time.Now().Add(time.Hour)), session.ErrNotFound)).To(BeTrue())

		removed, err := sessions.DeleteExpired(env.ctx, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(Equal(int64(1)))

		_, err = sessions.Get(env.ctx, "live")
		Expect(err).NotTo(HaveOccurred())
	})

	It("applies last write wins for concurrent saves", func() {
		expires := time.Now().Add(time.Hour)
		Expect(sessions.Set(env.ctx, "k", session.Record{Payload: []byte("first"), ExpiresAt: expires})).To(Succeed())
		Expect(sessions.Set(env.ctx, "k", session.Record{Payload: []byte("second"), ExpiresAt: expires})).To(Succeed())

		rec, err := sessions.Get(env.ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Payload).To(Equal([]byte("second")))
	})
})
