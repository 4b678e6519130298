// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package identity

import (
	"context"

	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	"github.com/campusdiaries/campusdiaries/internal/session"
)

type contextKey struct{}

func newContext(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, contextKey{}, b)
}

// FromContext returns the request's Binding, or nil outside the session stage.
func FromContext(ctx context.Context) *Binding {
	b, _ := ctx.Value(contextKey{}).(*Binding)
	return b
}

// Session returns the request's session, or nil outside the session stage.
func Session(ctx context.Context) *session.Session {
	if b := FromContext(ctx); b != nil {
		return b.session
	}
	return nil
}

// CurrentPrincipal returns the signed-in principal, or nil.
func CurrentPrincipal(ctx context.Context) *auth.Principal {
	if b := FromContext(ctx); b != nil {
		return b.principal
	}
	return nil
}

// Login binds p to the request's session.
func Login(ctx context.Context, p *auth.Principal) error {
	b := FromContext(ctx)
	if b == nil {
		return errNotBound()
	}
	return b.Login(p)
}

// Logout makes the request's session anonymous.
func Logout(ctx context.Context) error {
	b := FromContext(ctx)
	if b == nil {
		return errNotBound()
	}
	return b.Logout()
}

func errNotBound() error {
	return oops.Code("IDENTITY_NOT_BOUND").Errorf("request has no session binding")
}
