// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/socmon/internal/metrics"
	"github.com/olegiv/socmon/internal/middleware"
)

// RouterConfig wires handlers and middleware into the router.
type RouterConfig struct {
	SessionManager *scs.SessionManager
	Users          middleware.UserLoader

	Auth   *AuthHandler
	Pages  *PagesHandler
	Logs   *LogsHandler
	Health *HealthHandler

	// Metrics exposes /metrics and instruments requests when set.
	Metrics *metrics.Metrics
	// LoginProtection throttles POST /login when set.
	LoginProtection *middleware.LoginProtection

	CSRF           middleware.CSRFConfig
	Security       middleware.SecurityHeadersConfig
	RequestTimeout time.Duration
}

// NewRouter builds the application's HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.SecurityHeaders(cfg.Security))

	r.Get(RouteHealth, cfg.Health.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, RouteMetrics, cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.SessionManager.LoadAndSave)
		r.Use(middleware.CSRF(cfg.CSRF))
		r.Use(middleware.LoadUser(cfg.SessionManager, cfg.Users))

		r.Get(RouteRoot, cfg.Pages.Home)
		r.Get(RouteSignup, cfg.Auth.SignupForm)
		r.Post(RouteSignup, cfg.Auth.Signup)
		r.Get(RouteLogin, cfg.Auth.LoginForm)
		if cfg.LoginProtection != nil {
			r.With(cfg.LoginProtection.Middleware).Post(RouteLogin, cfg.Auth.Login)
		} else {
			r.Post(RouteLogin, cfg.Auth.Login)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get(RouteDashboard, cfg.Pages.Dashboard)
			r.Post(RouteLogout, cfg.Auth.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get(RouteLogs, cfg.Logs.List)
			r.Post(RouteLogClose, cfg.Logs.Close)
		})
	})

	return r
}
