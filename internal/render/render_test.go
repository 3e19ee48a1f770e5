// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/web"
)

type stubAlerts struct {
	msg string
}

func (s *stubAlerts) TakeAndClear(context.Context) (string, bool) {
	msg := s.msg
	s.msg = ""
	return msg, msg != ""
}

func newRenderer(t *testing.T, alerts AlertSource) *Renderer {
	t.Helper()
	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	r, err := New(Config{TemplatesFS: templatesFS, Alerts: alerts})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNew_ParsesEmbeddedPages(t *testing.T) {
	r := newRenderer(t, nil)

	for _, name := range []string{"home", "signup", "login", "dashboard", "logs"} {
		if _, ok := r.templates[name]; !ok {
			t.Errorf("template %q not parsed", name)
		}
	}
}

func TestNew_NoPages(t *testing.T) {
	fsys := fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}{{end}}`)},
	}
	if _, err := New(Config{TemplatesFS: fsys}); err == nil {
		t.Error("expected error without pages")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newRenderer(t, nil)
	rec := httptest.NewRecorder()

	err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "missing", TemplateData{})
	if err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestRender_AlertShownOnce(t *testing.T) {
	alerts := &stubAlerts{msg: "SECURITY ALERT: Multiple failed login attempts detected!"}
	r := newRenderer(t, alerts)

	render := func() string {
		rec := httptest.NewRecorder()
		if err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/login", nil), http.StatusOK, "login", TemplateData{}); err != nil {
			t.Fatalf("Render: %v", err)
		}
		return rec.Body.String()
	}

	if body := render(); !strings.Contains(body, "SECURITY ALERT") {
		t.Error("first render should show the alert")
	}
	if body := render(); strings.Contains(body, "SECURITY ALERT") {
		t.Error("second render should not show the alert")
	}
}

func TestRender_StatusAndEscaping(t *testing.T) {
	r := newRenderer(t, nil)
	rec := httptest.NewRecorder()

	err := r.Render(rec, httptest.NewRequest(http.MethodPost, "/signup", nil), http.StatusConflict, "signup", TemplateData{
		Error:    "Username already taken",
		Username: `<script>x</script>`,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Username already taken") {
		t.Error("error message missing")
	}
	if strings.Contains(body, "<script>x") {
		t.Error("username was not escaped")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRender_Dashboard(t *testing.T) {
	r := newRenderer(t, nil)
	rec := httptest.NewRecorder()

	user := &model.User{ID: 1, Username: "carol", Role: model.RoleAdmin, CreatedAt: time.Now()}
	err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil), http.StatusOK, "dashboard", TemplateData{
		User: user,
		Data: struct{ Incidents, Total int64 }{2, 5},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := rec.Body.String()
	for _, want := range []string{"Welcome, carol", "admin", `href="/logs"`, "Open incidents: <strong>2</strong>"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
