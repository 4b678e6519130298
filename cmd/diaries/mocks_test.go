// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusdiaries/campusdiaries/internal/observability"
)

var errMockDatabase = errors.New("mock database")

// mockDatabase fails every query and records lifecycle calls.
type mockDatabase struct {
	mu      sync.Mutex
	pingErr error
	closed  bool
	execs   []string
	tag     pgconn.CommandTag
	execErr error
}

func (m *mockDatabase) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, sql)
	return m.tag, m.execErr
}

func (m *mockDatabase) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (m *mockDatabase) Ping(context.Context) error { return m.pingErr }

func (m *mockDatabase) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockDatabase) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type errRow struct{}

func (errRow) Scan(...any) error { return errMockDatabase }

// mockMigrator records calls and returns canned results.
type mockMigrator struct {
	upCalled    bool
	downCalled  bool
	closeCalled bool
	forced      *int
	version     uint
	dirty       bool
	pending     []uint
	err         error
	versionErr  error
	closeErr    error
}

func (m *mockMigrator) Up() error {
	m.upCalled = true
	return m.err
}

func (m *mockMigrator) Down() error {
	m.downCalled = true
	return m.err
}

func (m *mockMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, m.versionErr
}

func (m *mockMigrator) Force(version int) error {
	m.forced = &version
	return m.err
}

func (m *mockMigrator) Pending() ([]uint, error) {
	return m.pending, m.err
}

func (m *mockMigrator) Close() error {
	m.closeCalled = true
	return m.closeErr
}

// mockObservabilityServer captures the readiness checker.
type mockObservabilityServer struct {
	mu        sync.Mutex
	readiness observability.ReadinessChecker
	startErr  error
	stopped   bool
}

func (m *mockObservabilityServer) Start() (<-chan error, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return make(chan error), nil
}

func (m *mockObservabilityServer) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockObservabilityServer) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *mockObservabilityServer) Addr() string { return "127.0.0.1:9100" }

func (m *mockObservabilityServer) Metrics() *observability.Metrics { return nil }
