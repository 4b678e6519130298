// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/campusdiaries/campusdiaries/internal/flash"
	"github.com/campusdiaries/campusdiaries/internal/identity"
	"github.com/campusdiaries/campusdiaries/internal/logging"
	"github.com/campusdiaries/campusdiaries/internal/observability"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// returnToKey is the session data key for the URL to resume after login.
const returnToKey = "returnTo"

// statusRecorder remembers the status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p) //nolint:wrapcheck // passthrough
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requestInfo is filled in by later stages for the access log line.
type requestInfo struct {
	principalID string
}

type requestInfoKey struct{}

// AccessLog assigns a request ID, logs one line per request and records
// request metrics. metrics may be nil.
func AccessLog(logger *slog.Logger, metrics *observability.Metrics) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if id == "" || len(id) > 128 {
				id = ulid.Make().String()
			}
			w.Header().Set(RequestIDHeader, id)

			info := &requestInfo{}
			ctx := logging.WithRequestID(r.Context(), id)
			ctx = context.WithValue(ctx, requestInfoKey{}, info)
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}
				elapsed := time.Since(start)
				metrics.ObserveRequest(r.Method, status, elapsed)
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"duration", elapsed,
				}
				if info.principalID != "" {
					attrs = append(attrs, "user_id", info.principalID)
				}
				logger.InfoContext(ctx, "request", attrs...)
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

// Recover turns a panic into a logged 500 response.
func Recover(logger *slog.Logger) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler { //nolint:errorlint,err113 // sentinel panic value
					panic(recovered)
				}
				err := oops.Code("HTTP_PANIC").
					With("method", r.Method).
					With("path", r.URL.Path).
					With("stack", string(debug.Stack())).
					Errorf("panic: %v", recovered)
				writeError(w, r, logger, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Flash is the flash stage: it exposes the session's queue to later stages.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := identity.Session(r.Context())
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(flash.WithQueue(r.Context(), flash.New(sess))))
	})
}

// annotate records the resolved principal for the access log.
func annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
			if p := identity.CurrentPrincipal(r.Context()); p != nil {
				info.principalID = p.ID.String()
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin redirects anonymous requests to the login form. A GET is
// remembered so a successful login resumes it.
func RequireLogin(loginPath string, logger *slog.Logger) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if identity.CurrentPrincipal(ctx) != nil {
				next.ServeHTTP(w, r)
				return
			}
			if sess := identity.Session(ctx); sess != nil && r.Method == http.MethodGet {
				if err := sess.Put(returnToKey, r.URL.RequestURI()); err != nil {
					writeError(w, r, logger, err)
					return
				}
			}
			logger.DebugContext(ctx, "login required", "path", r.URL.Path)
			flash.FromContext(ctx).Error("You must be logged in")
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
		})
	}
}
