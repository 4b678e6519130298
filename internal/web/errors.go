// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/campusdiaries/campusdiaries/pkg/errutil"
)

// Public error texts.
const (
	MessageNotFound = "This page does not exist."
	MessageInternal = "Something went wrong"
)

// HTTPError is an error with a status code and a message safe to show.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NotFound is the error for unmatched routes.
func NotFound() error {
	return &HTTPError{Status: http.StatusNotFound, Message: MessageNotFound}
}

// BadRequest is the error for unreadable form submissions.
func BadRequest() error {
	return &HTTPError{Status: http.StatusBadRequest, Message: "The submitted form could not be read."}
}

// writeError renders err as the error page. An *HTTPError keeps its status
// and message; anything else is logged and becomes a 500 with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := http.StatusInternalServerError, MessageInternal
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		status, message = httpErr.Status, httpErr.Message
	} else {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	}
	renderErrorPage(w, r, status, message)
}

func renderErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	page := layout(http.StatusText(status), pageData{}, errorBody(status, message))
	templ.Handler(page, templ.WithStatus(status)).ServeHTTP(w, r)
}
