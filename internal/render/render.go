// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render executes the embedded HTML page templates.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/olegiv/socmon/internal/model"
)

const baseLayout = "layouts/base.html"

// AlertSource hands out the session's pending alert once.
type AlertSource interface {
	TakeAndClear(ctx context.Context) (string, bool)
}

// Renderer handles template rendering with caching.
type Renderer struct {
	templates map[string]*template.Template
	alerts    AlertSource
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS fs.FS
	// Alerts is consulted on every rendered page. Nil disables alerts.
	Alerts AlertSource
}

// New parses every page under pages/ together with the base layout.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		alerts:    cfg.Alerts,
	}

	pages, err := fs.Glob(cfg.TemplatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(cfg.TemplatesFS, baseLayout, page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDateTime": func(t time.Time) string {
			return t.Local().Format("Jan 2, 2006 15:04:05")
		},
	}
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title       string
	User        *model.User
	Alert       string
	Error       string
	Username    string
	Data        any
	CurrentYear int
}

// Render writes page name with status. The session's pending alert, if
// any, is consumed and shown.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	data.CurrentYear = time.Now().Year()

	if r.alerts != nil {
		if msg, ok := r.alerts.TakeAndClear(req.Context()); ok {
			data.Alert = msg
		}
	}

	// Render to buffer first to catch errors
	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
