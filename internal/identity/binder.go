// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package identity binds the session and its principal to each request.
//
// The Binder contributes two pipeline stages. LoadSession reads the signed
// session cookie, loads the session and commits it when the response starts.
// ResolvePrincipal turns the session's principal ID into an *auth.Principal.
// Handlers use CurrentPrincipal, Login and Logout on the request context.
//
// Login and Logout rotate the session token at commit time, so the session a
// handler sees through Session stays the same object for the whole request.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	"github.com/campusdiaries/campusdiaries/internal/session"
	"github.com/campusdiaries/campusdiaries/pkg/errutil"
)

// DefaultCookieName names the session cookie.
const DefaultCookieName = "diaries.sid"

// PrincipalResolver looks up the principal behind a session. auth.CredentialStore
// implements it.
type PrincipalResolver interface {
	Principal(ctx context.Context, id ulid.ULID) (*auth.Principal, error)
}

// Option configures a Binder.
type Option func(*Binder)

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(b *Binder) { b.cookieName = name }
}

// WithSecureCookies sets the cookie Secure attribute.
func WithSecureCookies(secure bool) Option {
	return func(b *Binder) { b.secure = secure }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) { b.logger = logger }
}

// Binder owns the session cookie and the principal binding.
type Binder struct {
	sessions   *session.Manager
	signer     *session.CookieSigner
	resolver   PrincipalResolver
	cookieName string
	secure     bool
	logger     *slog.Logger
}

// NewBinder creates a Binder.
func NewBinder(sessions *session.Manager, signer *session.CookieSigner, resolver PrincipalResolver, opts ...Option) (*Binder, error) {
	switch {
	case sessions == nil:
		return nil, oops.Code("IDENTITY_INVALID_DEPENDENCY").Errorf("session manager is required")
	case signer == nil:
		return nil, oops.Code("IDENTITY_INVALID_DEPENDENCY").Errorf("cookie signer is required")
	case resolver == nil:
		return nil, oops.Code("IDENTITY_INVALID_DEPENDENCY").Errorf("principal resolver is required")
	}
	b := &Binder{
		sessions:   sessions,
		signer:     signer,
		resolver:   resolver,
		cookieName: DefaultCookieName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cookieName == "" {
		return nil, oops.Code("IDENTITY_INVALID_COOKIE_NAME").Errorf("cookie name is required")
	}
	return b, nil
}

// CookieName returns the session cookie name.
func (b *Binder) CookieName() string { return b.cookieName }

// LoadSession is the session stage. Every response it wraps carries a
// refreshed session cookie, including one cut short by a panic that an
// outer stage recovers.
func (b *Binder) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := b.sessions.Load(ctx, b.tokenFrom(r))
		if err != nil {
			errutil.LogErrorContext(ctx, b.logger, "session unavailable", err)
			http.Error(w, "Something went wrong", http.StatusInternalServerError)
			return
		}

		binding := &Binding{binder: b, session: sess}
		cw := newCommitWriter(w, func() { binding.commit(ctx, w) })
		defer cw.finish()
		next.ServeHTTP(cw, r.WithContext(newContext(ctx, binding)))
	})
}

// ResolvePrincipal is the identity stage. A principal that cannot be
// resolved leaves the request anonymous; it never fails the request.
func (b *Binder) ResolvePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if binding := FromContext(r.Context()); binding != nil {
			binding.resolve(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Binder) tokenFrom(r *http.Request) string {
	cookie, err := r.Cookie(b.cookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	token, err := b.signer.Verify(cookie.Value)
	if err != nil {
		b.logger.DebugContext(r.Context(), "ignoring invalid session cookie", "error", err)
		return ""
	}
	return token
}

func (b *Binder) writeCookie(ctx context.Context, w http.ResponseWriter, sess *session.Session) {
	value, err := b.signer.Sign(sess.Token())
	if err != nil {
		errutil.LogErrorContext(ctx, b.logger, "session cookie signing failed", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(b.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (b *Binder) lookup(ctx context.Context, id ulid.ULID) (p *auth.Principal, gone bool) {
	p, err := b.resolver.Principal(ctx, id)
	switch {
	case err == nil:
		return p, false
	case errors.Is(err, auth.ErrNotFound):
		b.logger.InfoContext(ctx, "session principal no longer exists", "user_id", id.String())
		return nil, true
	default:
		errutil.LogErrorContext(ctx, b.logger, "principal lookup failed", err)
		return nil, false
	}
}
