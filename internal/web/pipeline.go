// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

// Package web serves the signup, login and logout routes on top of the
// session and identity stages.
package web

import "net/http"

// Stage wraps the rest of the pipeline. A stage that writes a response
// without calling next short-circuits the stages after it.
type Stage func(http.Handler) http.Handler

// Pipeline is an ordered list of stages. The first stage sees the request first.
type Pipeline []Stage

// NewPipeline returns a pipeline running stages in order. Nil stages are skipped.
func NewPipeline(stages ...Stage) Pipeline {
	return Pipeline(stages)
}

// Then terminates the pipeline with h.
func (p Pipeline) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == nil {
			continue
		}
		h = p[i](h)
	}
	return h
}
