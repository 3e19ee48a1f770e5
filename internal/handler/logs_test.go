// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/socmon/internal/middleware"
	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/service"
	"github.com/olegiv/socmon/internal/store"
)

// TestBruteForceScenario registers bob, fails three logins and has an
// admin close the resulting incident.
func TestBruteForceScenario(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	attacker := app.client(t)
	res := app.do(t, attacker, http.MethodPost, RouteSignup, creds("bob", "pw1"))
	require.Equal(t, http.StatusSeeOther, res.status)

	for i := 0; i < 3; i++ {
		res := app.do(t, attacker, http.MethodPost, RouteLogin, creds("bob", fmt.Sprintf("guess-%d", i)))
		require.Equal(t, http.StatusSeeOther, res.status)
		require.Equal(t, RouteLogin, res.location)
	}

	res = app.do(t, attacker, http.MethodGet, RouteLogin, nil)
	assert.Contains(t, res.body, service.AlertMessage)

	failures, err := app.store.ListLogEntries(ctx, store.LogFilter{Username: "bob", MinSeverity: model.SeverityHigh})
	require.NoError(t, err)

	var incidents []model.LogEntry
	for _, e := range failures {
		if e.Action == model.ActionBruteForceAlert {
			incidents = append(incidents, e)
		}
	}
	require.Len(t, incidents, 1)
	incident := incidents[0]
	assert.Equal(t, model.SeverityCritical, incident.Severity)
	assert.Equal(t, model.StatusOpen, incident.Status)
	assert.Len(t, failures, 4, "three HIGH failures and one CRITICAL incident")

	admin := app.mustAdmin(t)

	res = app.do(t, admin, http.MethodGet, RouteLogs, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, model.ActionBruteForceAlert)
	assert.Contains(t, res.body, "ZZ")
	assert.Contains(t, res.body, fmt.Sprintf("/logs/%d/close", incident.ID))

	closePath := fmt.Sprintf("/logs/%d/close", incident.ID)
	res = app.do(t, admin, http.MethodPost, closePath, nil)
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, RouteLogs, res.location)

	got, err := app.store.GetLogEntry(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, got.Status)

	res = app.do(t, admin, http.MethodPost, closePath, nil)
	assert.Equal(t, http.StatusSeeOther, res.status, "closing twice is accepted")

	res = app.do(t, attacker, http.MethodPost, RouteLogin, creds("bob", "guess-4"))
	require.Equal(t, http.StatusSeeOther, res.status)
	res = app.do(t, attacker, http.MethodGet, RouteLogin, nil)
	assert.NotContains(t, res.body, service.AlertMessage, "a fourth failure does not re-trigger")
}

func TestLogsAccessControl(t *testing.T) {
	app := newTestApp(t)
	_, err := app.creds.Register(context.Background(), "frank", "pw")
	require.NoError(t, err)

	user := app.client(t)
	app.do(t, user, http.MethodPost, RouteLogin, creds("frank", "pw"))

	tests := []struct {
		name   string
		client *http.Client
		method string
		path   string
	}{
		{"anonymous list", app.client(t), http.MethodGet, RouteLogs},
		{"anonymous close", app.client(t), http.MethodPost, "/logs/1/close"},
		{"anonymous close unknown id", app.client(t), http.MethodPost, "/logs/9999/close"},
		{"user list", user, http.MethodGet, RouteLogs},
		{"user close", user, http.MethodPost, "/logs/1/close"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := app.do(t, tt.client, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusForbidden, res.status)
			assert.Equal(t, middleware.AdminsOnly, strings.TrimSpace(res.body))
		})
	}
}

func TestLogsFilterAndClose(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	admin := app.mustAdmin(t)

	_, err := app.store.CreateLogEntry(ctx, store.CreateLogEntryParams{
		Username: "ghost", Action: model.ActionUnknownUser, IP: "198.51.100.1",
		Severity: model.SeverityMedium, Status: model.StatusOpen, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	res := app.do(t, admin, http.MethodGet, "/logs?severity=high", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.NotContains(t, res.body, "ghost")

	res = app.do(t, admin, http.MethodGet, "/logs?severity=bogus&status=open", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "ghost")

	res = app.do(t, admin, http.MethodPost, "/logs/abc/close", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = app.do(t, admin, http.MethodPost, "/logs/424242/close", nil)
	assert.Equal(t, http.StatusSeeOther, res.status)
}

func TestDashboardSummaryForAdmin(t *testing.T) {
	app := newTestApp(t)
	admin := app.mustAdmin(t)

	_, err := app.store.CreateLogEntry(context.Background(), store.CreateLogEntryParams{
		Username: "bob", Action: model.ActionBruteForceAlert, IP: "203.0.113.9",
		Severity: model.SeverityCritical, Status: model.StatusOpen, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	res := app.do(t, admin, http.MethodGet, RouteDashboard, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Welcome, root")
	assert.Contains(t, res.body, "Open incidents: <strong>1</strong>")
	assert.Contains(t, res.body, `href="/logs"`)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, app.client(t), http.MethodGet, RouteHealth, nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"status":"ok"}`, res.body)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return fmt.Errorf("database is closed") }

func TestHealthUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(failingPinger{}).Health(rec, httptest.NewRequest(http.MethodGet, RouteHealth, nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}
