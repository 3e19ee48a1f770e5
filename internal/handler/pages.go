// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olegiv/socmon/internal/middleware"
	"github.com/olegiv/socmon/internal/render"
	"github.com/olegiv/socmon/internal/service"
)

// Summarizer counts unclosed log entries.
type Summarizer interface {
	Summary(ctx context.Context) (service.Summary, error)
}

// PagesHandler serves the landing page and the dashboard.
type PagesHandler struct {
	incidents Summarizer
	renderer  *render.Renderer
}

// NewPagesHandler creates a new PagesHandler.
func NewPagesHandler(incidents Summarizer, renderer *render.Renderer) *PagesHandler {
	return &PagesHandler{incidents: incidents, renderer: renderer}
}

// Home renders the landing page.
func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, http.StatusOK, "home", render.TemplateData{
		Title: "Welcome",
		User:  middleware.GetUser(r),
	})
}

// Dashboard greets the signed-in user. Admins also see open incident counts.
func (h *PagesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	data := render.TemplateData{Title: "Dashboard", User: user}

	if user.IsAdmin() {
		sum, err := h.incidents.Summary(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to summarize incidents", "error", err)
		} else {
			data.Data = sum
		}
	}

	renderPage(w, r, h.renderer, http.StatusOK, "dashboard", data)
}
