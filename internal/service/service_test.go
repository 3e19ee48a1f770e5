// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/socmon/internal/auth"
	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/store"
	"github.com/olegiv/socmon/internal/testutil"
)

// recordingAlerts collects queued alert messages.
type recordingAlerts struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingAlerts) Queue(_ context.Context, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingAlerts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// recordingNotifier collects notified incidents.
type recordingNotifier struct {
	mu        sync.Mutex
	incidents []model.LogEntry
}

func (r *recordingNotifier) NotifyIncident(_ context.Context, e model.LogEntry) {
	r.mu.Lock()
	r.incidents = append(r.incidents, e)
	r.mu.Unlock()
}

type harness struct {
	store    store.Store
	creds    *auth.Credentials
	attempts *AttemptLogger
	detector *Detector
	tracker  *IncidentTracker
	login    *LoginService
	alerts   *recordingAlerts
	notifier *recordingNotifier
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, s store.Store, cfg DetectorConfig) *harness {
	t.Helper()

	logger := discardLogger()
	h := &harness{
		store:    s,
		alerts:   &recordingAlerts{},
		notifier: &recordingNotifier{},
	}
	hasher := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32, SaltLen: 16})
	h.creds = auth.NewCredentials(s, hasher, logger)
	h.attempts = NewAttemptLogger(s, nil, logger)
	h.detector = NewDetector(s, cfg, nil, h.notifier, logger)
	h.tracker = NewIncidentTracker(s, nil, logger)
	h.login = NewLoginService(h.creds, h.attempts, h.detector, h.alerts, logger)
	return h
}

// backends returns a fresh MemoryStore and SQLite store.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	return map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"sqlite": store.NewSQLStore(db),
	}
}

func (h *harness) register(t *testing.T, username, password string) {
	t.Helper()
	_, err := h.creds.Register(context.Background(), username, password)
	require.NoError(t, err)
}

func (h *harness) attempt(t *testing.T, username, password string) LoginResult {
	t.Helper()
	res, err := h.login.Authenticate(context.Background(), LoginRequest{
		Username:  username,
		Password:  password,
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0",
	})
	require.NoError(t, err)
	return res
}

func (h *harness) entries(t *testing.T, username, action string) []model.LogEntry {
	t.Helper()
	all, err := h.store.ListLogEntries(context.Background(), store.LogFilter{Username: username})
	require.NoError(t, err)
	var out []model.LogEntry
	for _, e := range all {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newMemory() *store.MemoryStore {
	return store.NewMemoryStore()
}
