// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mileusna/useragent"

	"github.com/olegiv/socmon/internal/middleware"
	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/render"
	"github.com/olegiv/socmon/internal/service"
)

// maxListedEntries caps one page of the log view.
const maxListedEntries = 500

// IncidentStore lists and closes security log entries.
type IncidentStore interface {
	List(ctx context.Context, f service.Filter) ([]model.LogEntry, error)
	Close(ctx context.Context, id int64) error
}

// CountryResolver maps an IP to a country code.
type CountryResolver interface {
	Country(ip string) string
}

// LogsHandler serves the admin security log view.
type LogsHandler struct {
	incidents IncidentStore
	geo       CountryResolver
	renderer  *render.Renderer
}

// NewLogsHandler creates a new LogsHandler. geo may be nil.
func NewLogsHandler(incidents IncidentStore, geo CountryResolver, renderer *render.Renderer) *LogsHandler {
	return &LogsHandler{incidents: incidents, geo: geo, renderer: renderer}
}

// LogRow is one line of the log view.
type LogRow struct {
	model.LogEntry
	Country string
	Client  string
}

// LogsPage is the data of the log view.
type LogsPage struct {
	Rows       []LogRow
	Severity   model.Severity
	Status     model.Status
	Severities []model.Severity
	Statuses   []model.Status
}

// List handles GET /logs. Optional query parameters severity (minimum) and
// status narrow the listing; unknown values are ignored.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	var f service.Filter
	if sev, err := model.ParseSeverity(r.URL.Query().Get("severity")); err == nil {
		f.MinSeverity = sev
	}
	if st, err := model.ParseStatus(r.URL.Query().Get("status")); err == nil {
		f.Status = st
	}
	f.Limit = maxListedEntries

	entries, err := h.incidents.List(r.Context(), f)
	if err != nil {
		logAndInternalError(w, r, "failed to list log entries", "error", err)
		return
	}

	page := LogsPage{
		Rows:       make([]LogRow, 0, len(entries)),
		Severity:   f.MinSeverity,
		Status:     f.Status,
		Severities: model.Severities,
		Statuses:   model.Statuses,
	}
	for _, e := range entries {
		page.Rows = append(page.Rows, h.row(e))
	}

	renderPage(w, r, h.renderer, http.StatusOK, "logs", render.TemplateData{
		Title: "Security logs",
		User:  middleware.GetUser(r),
		Data:  page,
	})
}

func (h *LogsHandler) row(e model.LogEntry) LogRow {
	row := LogRow{LogEntry: e}
	if h.geo != nil {
		row.Country = h.geo.Country(e.IP)
	}
	if e.UserAgent != "" {
		ua := useragent.Parse(e.UserAgent)
		switch {
		case ua.Bot:
			row.Client = "bot"
		case ua.Name != "" && ua.OS != "":
			row.Client = ua.Name + " / " + ua.OS
		default:
			row.Client = ua.Name
		}
	}
	return row
}

// Close handles POST /logs/{id}/close. Unknown and already closed entries
// are accepted without changes.
func (h *LogsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid log entry id", http.StatusBadRequest)
		return
	}

	if err := h.incidents.Close(r.Context(), id); err != nil {
		logAndInternalError(w, r, "failed to close log entry", "id", id, "error", err)
		return
	}

	http.Redirect(w, r, RouteLogs, http.StatusSeeOther)
}
