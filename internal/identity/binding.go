// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package identity

import (
	"context"
	"net/http"

	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/auth"
	"github.com/campusdiaries/campusdiaries/internal/session"
	"github.com/campusdiaries/campusdiaries/pkg/errutil"
)

type change int

const (
	unchanged change = iota
	loggedIn
	loggedOut
)

// Binding is the request-scoped identity state. It belongs to one request
// and is not safe for concurrent use.
type Binding struct {
	binder    *Binder
	session   *session.Session
	principal *auth.Principal
	change    change
	// gone marks a session principal whose user no longer exists.
	gone      bool
	committed bool
}

// Session returns the request's session.
func (b *Binding) Session() *session.Session { return b.session }

// CurrentPrincipal returns the signed-in principal, or nil for an anonymous request.
func (b *Binding) CurrentPrincipal() *auth.Principal { return b.principal }

// Login binds p to the session. The token is rotated when the response commits.
func (b *Binding) Login(p *auth.Principal) error {
	if p == nil {
		return oops.Code("IDENTITY_NIL_PRINCIPAL").Errorf("cannot log in a nil principal")
	}
	if b.committed {
		return oops.Code("IDENTITY_ALREADY_COMMITTED").With("user_id", p.ID.String()).
			Errorf("response already started")
	}
	b.principal = p
	b.change = loggedIn
	return nil
}

// Logout clears the principal and the session data. Data put after Logout,
// such as a flash notice, is kept. The token is rotated when the response
// commits.
func (b *Binding) Logout() error {
	if b.committed {
		return oops.Code("IDENTITY_ALREADY_COMMITTED").Errorf("response already started")
	}
	b.principal = nil
	b.change = loggedOut
	b.session.Clear()
	return nil
}

func (b *Binding) resolve(ctx context.Context) {
	id, ok := b.session.PrincipalID()
	if !ok {
		return
	}
	b.principal, b.gone = b.binder.lookup(ctx, id)
}

// commit writes the principal back, persists the session and sets the cookie.
// It runs once, before the first byte of the response.
func (b *Binding) commit(ctx context.Context, w http.ResponseWriter) {
	b.committed = true
	// The save must complete even when the client has gone away.
	ctx = context.WithoutCancel(ctx)
	sessions := b.binder.sessions

	if b.change != unchanged {
		next, err := sessions.Regenerate(ctx, b.session, true)
		if err != nil {
			errutil.LogErrorContext(ctx, b.binder.logger, "session rotation failed", err)
		} else {
			b.session = next
		}
	}

	switch {
	case b.principal != nil:
		b.session.SetPrincipal(b.principal.ID)
	case b.change == loggedOut || b.gone:
		b.session.ClearPrincipal()
	}

	sessions.Save(ctx, b.session)
	b.binder.writeCookie(ctx, w, b.session)
}
