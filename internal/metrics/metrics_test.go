// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/olegiv/socmon/internal/model"
)

func TestEngineCounters(t *testing.T) {
	m, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := model.LogEntry{Action: model.ActionLoginFailed, Severity: model.SeverityHigh}
	m.AttemptLogged(e)
	m.AttemptLogged(e)
	m.IncidentOpened(model.LogEntry{})
	m.IncidentClosed()
	m.NotificationDelivered("webhook", nil)
	m.NotificationDelivered("webhook", errors.New("timeout"))

	if got := testutil.ToFloat64(m.Attempts.WithLabelValues(model.ActionLoginFailed, "HIGH")); got != 2 {
		t.Errorf("attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IncidentsOpened); got != 1 {
		t.Errorf("opened = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IncidentsClosed); got != 1 {
		t.Errorf("closed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues("webhook", "error")); got != 1 {
		t.Errorf("failed notifications = %v, want 1", got)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := New(Options{Registerer: reg})
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	second, err := New(Options{Registerer: reg})
	if err != nil {
		t.Fatalf("second New: %v", err)
	}

	first.IncidentOpened(model.LogEntry{})
	if got := testutil.ToFloat64(second.IncidentsOpened); got != 1 {
		t.Errorf("second instance sees %v, want shared counter 1", got)
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/logs/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/logs", http.StatusSeeOther)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logs/17/close", nil))

	labels := prometheus.Labels{"method": http.MethodPost, "route": "/logs/{id}/close", "status": "303"}
	if got := testutil.ToFloat64(m.Requests.With(labels)); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("in-flight = %v, want 0", got)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "socmon_http_requests_total") {
		t.Error("exposition is missing socmon_http_requests_total")
	}
}

func TestMiddlewareNilMetrics(t *testing.T) {
	var m *Metrics
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}
}
