// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdiaries/campusdiaries/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("SESSION_STORE_UNAVAILABLE").
		With("operation", "set").
		Errorf("connection refused")

	errutil.LogError(logger, "session save failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "session save failed", entry["msg"])
	assert.Equal(t, "SESSION_STORE_UNAVAILABLE", entry["code"])
	assert.Equal(t, map[string]any{"operation": "set"}, entry["context"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}

type ctxKey struct{}

type capturingHandler struct {
	slog.Handler
	seen *context.Context
}

func (h capturingHandler) Handle(ctx context.Context, r slog.Record) error {
	*h.seen = ctx
	return h.Handler.Handle(ctx, r)
}

func TestLogErrorContext_PassesContextToHandler(t *testing.T) {
	var (
		buf  bytes.Buffer
		seen context.Context
	)
	logger := slog.New(capturingHandler{Handler: slog.NewJSONHandler(&buf, nil), seen: &seen})
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")

	errutil.LogErrorContext(ctx, logger, "failed", errors.New("boom"))

	require.NotNil(t, seen)
	assert.Equal(t, "req-1", seen.Value(ctxKey{}))
}
