// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package identity

import (
	"net/http"
	"sync"
)

// commitWriter runs commit before the response header is sent, or when the
// handler returns without writing.
type commitWriter struct {
	http.ResponseWriter
	commit func()
	once   sync.Once
}

func newCommitWriter(w http.ResponseWriter, commit func()) *commitWriter {
	return &commitWriter{ResponseWriter: w, commit: commit}
}

func (w *commitWriter) WriteHeader(status int) {
	w.once.Do(w.commit)
	w.ResponseWriter.WriteHeader(status)
}

func (w *commitWriter) Write(p []byte) (int, error) {
	w.once.Do(w.commit)
	return w.ResponseWriter.Write(p) //nolint:wrapcheck // passthrough
}

// Flush commits and flushes when the underlying writer supports it.
func (w *commitWriter) Flush() {
	w.once.Do(w.commit)
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *commitWriter) finish() {
	w.once.Do(w.commit)
}
