// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/socmon/internal/auth"
	"github.com/olegiv/socmon/internal/middleware"
	"github.com/olegiv/socmon/internal/render"
	"github.com/olegiv/socmon/internal/service"
	"github.com/olegiv/socmon/internal/session"
	"github.com/olegiv/socmon/internal/store"
	"github.com/olegiv/socmon/internal/testutil"
	"github.com/olegiv/socmon/web"
)

// testApp is the full router over a temporary SQLite database.
type testApp struct {
	srv   *httptest.Server
	store *store.SQLStore
	creds *auth.Credentials
}

type fixedCountry string

func (c fixedCountry) Country(string) string { return string(c) }

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	st, db := testutil.TestStore(t)
	logger := testutil.DiscardLogger()

	hasher := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32, SaltLen: 16})
	creds := auth.NewCredentials(st, hasher, logger)

	sm := session.New(db, true)
	alerts := session.NewAlerts(sm)

	attempts := service.NewAttemptLogger(st, nil, logger)
	detector := service.NewDetector(st, service.DetectorConfig{}, nil, nil, logger)
	tracker := service.NewIncidentTracker(st, nil, logger)
	login := service.NewLoginService(creds, attempts, detector, alerts, logger)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	renderer, err := render.New(render.Config{TemplatesFS: templatesFS, Alerts: alerts})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		SessionManager: sm,
		Users:          st,
		Auth:           NewAuthHandler(creds, login, renderer, sm),
		Pages:          NewPagesHandler(tracker, renderer),
		Logs:           NewLogsHandler(tracker, fixedCountry("ZZ"), renderer),
		Health:         NewHealthHandler(db),
		CSRF:           middleware.DefaultCSRFConfig(make([]byte, 32), true, "localhost:3000"),
		Security:       middleware.DefaultSecurityHeadersConfig(true),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, store: st, creds: creds}
}

// client returns a browser-like client with its own cookie jar that does
// not follow redirects.
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type response struct {
	status   int
	location string
	body     string
}

func (a *testApp) do(t *testing.T, c *http.Client, method, path string, form url.Values) response {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(context.Background(), method, a.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(b)}
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

// mustAdmin seeds an admin account and returns a client logged in as it.
func (a *testApp) mustAdmin(t *testing.T) *http.Client {
	t.Helper()
	require.NoError(t, a.creds.EnsureAdmin(context.Background(), "root", "root-password"))
	c := a.client(t)
	res := a.do(t, c, http.MethodPost, RouteLogin, creds("root", "root-password"))
	require.Equal(t, http.StatusSeeOther, res.status)
	require.Equal(t, RouteDashboard, res.location)
	return c
}
