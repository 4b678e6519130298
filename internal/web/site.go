// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	"github.com/campusdiaries/campusdiaries/internal/flash"
	"github.com/campusdiaries/campusdiaries/internal/identity"
	"github.com/campusdiaries/campusdiaries/internal/observability"
)

// Route paths.
const (
	PathSignup  = "/users/signup"
	PathLogin   = "/users/login"
	PathLogout  = "/users/logout"
	PathExplore = "/explore"
)

// DefaultRedirect is where signup, logout and a login without a saved URL land.
const DefaultRedirect = PathExplore

// Registrar creates accounts. auth.CredentialStore implements it.
type Registrar interface {
	Create(ctx context.Context, username, email, password string) (*auth.User, error)
}

// Option configures a Site.
type Option func(*Site)

// WithDefaultRedirect overrides DefaultRedirect.
func WithDefaultRedirect(path string) Option {
	return func(s *Site) { s.defaultRedirect = path }
}

// WithLogger sets the logger for access logs and errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Site) { s.logger = logger }
}

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Site) { s.metrics = m }
}

// Site is the web front end of the auth core.
type Site struct {
	registrar       Registrar
	strategy        auth.Strategy
	binder          *identity.Binder
	defaultRedirect string
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// NewSite creates a Site.
func NewSite(registrar Registrar, strategy auth.Strategy, binder *identity.Binder, opts ...Option) (*Site, error) {
	switch {
	case registrar == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("registrar is required")
	case strategy == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("authentication strategy is required")
	case binder == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("identity binder is required")
	}
	s := &Site{
		registrar:       registrar,
		strategy:        strategy,
		binder:          binder,
		defaultRedirect: DefaultRedirect,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !localPath(s.defaultRedirect) {
		return nil, oops.Code("WEB_INVALID_REDIRECT").With("redirect", s.defaultRedirect).
			Errorf("default redirect must be a local path")
	}
	return s, nil
}

// Handler returns the full pipeline: access log, recover, session, flash,
// identity, then routing.
func (s *Site) Handler() http.Handler {
	return NewPipeline(
		AccessLog(s.logger, s.metrics),
		Recover(s.logger),
		s.binder.LoadSession,
		Flash,
		s.binder.ResolvePrincipal,
		annotate,
	).Then(s.routes())
}

func (s *Site) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, PathExplore, http.StatusFound)
	})
	mux.HandleFunc("GET "+PathExplore, s.explore)
	mux.Handle("GET "+PathExplore+"/new", RequireLogin(PathLogin, s.logger)(http.HandlerFunc(s.compose)))
	mux.HandleFunc("GET "+PathSignup, s.signupForm)
	mux.HandleFunc("POST "+PathSignup, s.signup)
	mux.HandleFunc("GET "+PathLogin, s.loginForm)
	mux.HandleFunc("POST "+PathLogin, s.login)
	mux.HandleFunc("GET "+PathLogout, s.logout)
	mux.HandleFunc("POST "+PathLogout, s.logout)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, s.logger, NotFound())
	})
	return mux
}

func (s *Site) explore(w http.ResponseWriter, r *http.Request) {
	render(w, r, "Explore", exploreBody(identity.CurrentPrincipal(r.Context())))
}

func (s *Site) compose(w http.ResponseWriter, r *http.Request) {
	render(w, r, "New post", composeBody(identity.CurrentPrincipal(r.Context())))
}

func (s *Site) signupForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, "Sign up", signupForm())
}

func (s *Site) loginForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, "Log in", loginForm())
}

// signup creates the account and logs it in. Validation and uniqueness
// failures go back to the form with the reason flashed.
func (s *Site) signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeError(w, r, s.logger, BadRequest())
		return
	}

	user, err := s.registrar.Create(ctx, r.PostForm.Get("username"), r.PostForm.Get("email"), r.PostForm.Get("password"))
	switch {
	case auth.IsValidation(err):
		observability.RecordAuthAttempt("signup", "invalid")
		flash.FromContext(ctx).Error(auth.PublicMessage(err))
		http.Redirect(w, r, PathSignup, http.StatusSeeOther)
		return
	case err != nil:
		observability.RecordAuthAttempt("signup", "error")
		writeError(w, r, s.logger, err)
		return
	}

	if err := identity.Login(ctx, user.Principal()); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	observability.RecordAuthAttempt("signup", "success")
	flash.FromContext(ctx).Success(fmt.Sprintf("@%s, Welcome to Campus Diaries!", user.Username))
	http.Redirect(w, r, s.defaultRedirect, http.StatusSeeOther)
}

// login authenticates and binds the principal, then resumes the URL saved by
// RequireLogin or falls back to the default redirect.
func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeError(w, r, s.logger, BadRequest())
		return
	}

	principal, err := s.strategy.Authenticate(ctx, auth.Credentials{
		Identifier: r.PostForm.Get("username"),
		Password:   r.PostForm.Get("password"),
	})
	switch {
	case auth.IsInvalidCredentials(err):
		observability.RecordAuthAttempt("login", "invalid_credentials")
		flash.FromContext(ctx).Error(auth.PublicMessage(err))
		http.Redirect(w, r, PathLogin, http.StatusSeeOther)
		return
	case err != nil:
		observability.RecordAuthAttempt("login", "error")
		writeError(w, r, s.logger, err)
		return
	}

	if err := identity.Login(ctx, principal); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	observability.RecordAuthAttempt("login", "success")
	flash.FromContext(ctx).Success(fmt.Sprintf("@%s, Welcome back to Campus Diaries!", principal.Username))
	http.Redirect(w, r, s.takeReturnTo(ctx), http.StatusSeeOther)
}

func (s *Site) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := identity.Logout(ctx); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	observability.RecordAuthAttempt("logout", "success")
	flash.FromContext(ctx).Success("You have been logged out successfully")
	http.Redirect(w, r, s.defaultRedirect, http.StatusSeeOther)
}

// takeReturnTo consumes the saved return URL. Anything that is not a local
// path is ignored.
func (s *Site) takeReturnTo(ctx context.Context) string {
	sess := identity.Session(ctx)
	if sess == nil || !sess.Has(returnToKey) {
		return s.defaultRedirect
	}
	var target string
	ok, err := sess.Get(returnToKey, &target)
	sess.Delete(returnToKey)
	if !ok || err != nil || !localPath(target) {
		return s.defaultRedirect
	}
	return target
}

// localPath reports whether target stays on this site.
func localPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}
