// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler implements the HTTP pages and actions.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/socmon/internal/render"
)

// Routes.
const (
	RouteRoot      = "/"
	RouteSignup    = "/signup"
	RouteLogin     = "/login"
	RouteLogout    = "/logout"
	RouteDashboard = "/dashboard"
	RouteLogs      = "/logs"
	RouteLogClose  = "/logs/{id}/close"
	RouteHealth    = "/health"
	RouteMetrics   = "/metrics"
)

// logAndHTTPError logs an error and writes an HTTP error response.
func logAndHTTPError(w http.ResponseWriter, r *http.Request, message string, statusCode int, logMsg string, args ...any) {
	slog.ErrorContext(r.Context(), logMsg, args...)
	http.Error(w, message, statusCode)
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, r *http.Request, logMsg string, args ...any) {
	logAndHTTPError(w, r, "Internal Server Error", http.StatusInternalServerError, logMsg, args...)
}

// renderPage renders name and turns a template failure into a 500.
func renderPage(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, status int, name string, data render.TemplateData) {
	if err := renderer.Render(w, r, status, name, data); err != nil {
		logAndInternalError(w, r, "failed to render page", "template", name, "error", err)
	}
}
