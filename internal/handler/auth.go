// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/socmon/internal/auth"
	"github.com/olegiv/socmon/internal/middleware"
	"github.com/olegiv/socmon/internal/render"
	"github.com/olegiv/socmon/internal/service"
	"github.com/olegiv/socmon/internal/session"
)

// Form messages.
const (
	msgFieldsRequired = "Username and password are required"
	msgUsernameTaken  = "Username already taken"
	msgInvalidName    = "Username must be 1-64 plain characters"
	msgUserNotFound   = "User not found"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, username, password string) (int64, error)
}

// Authenticator runs a login attempt.
type Authenticator interface {
	Authenticate(ctx context.Context, req service.LoginRequest) (service.LoginResult, error)
}

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	creds          Registrar
	login          Authenticator
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(creds Registrar, login Authenticator, renderer *render.Renderer, sm *scs.SessionManager) *AuthHandler {
	return &AuthHandler{
		creds:          creds,
		login:          login,
		renderer:       renderer,
		sessionManager: sm,
	}
}

// SignupForm renders the registration page.
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, http.StatusOK, "signup", render.TemplateData{
		Title: "Sign up",
		User:  middleware.GetUser(r),
	})
}

// Signup handles the registration form submission.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	fail := func(status int, msg string) {
		renderPage(w, r, h.renderer, status, "signup", render.TemplateData{
			Title:    "Sign up",
			Error:    msg,
			Username: username,
		})
	}

	if username == "" || password == "" {
		fail(http.StatusBadRequest, msgFieldsRequired)
		return
	}

	_, err := h.creds.Register(r.Context(), username, password)
	switch {
	case err == nil:
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	case errors.Is(err, auth.ErrDuplicateUsername):
		fail(http.StatusConflict, msgUsernameTaken)
	case errors.Is(err, auth.ErrInvalidUsername):
		fail(http.StatusBadRequest, msgInvalidName)
	case errors.Is(err, auth.ErrInvalidPassword):
		fail(http.StatusBadRequest, msgFieldsRequired)
	default:
		logAndInternalError(w, r, "failed to register user", "error", err)
	}
}

// LoginForm renders the login page, showing a pending security alert once.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUser(r) != nil {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, "login", render.TemplateData{Title: "Log in"})
}

// Login handles the login form submission. Every submission with both
// fields set is recorded in the security log.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if username == "" || password == "" {
		renderPage(w, r, h.renderer, http.StatusBadRequest, "login", render.TemplateData{
			Title:    "Log in",
			Error:    msgFieldsRequired,
			Username: username,
		})
		return
	}

	res, err := h.login.Authenticate(r.Context(), service.LoginRequest{
		Username:  username,
		Password:  password,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		logAndInternalError(w, r, "failed to authenticate", "error", err)
		return
	}

	switch res.Outcome {
	case auth.OutcomeMatched:
		// Regenerate session ID to prevent session fixation
		if err := h.sessionManager.RenewToken(r.Context()); err != nil {
			logAndInternalError(w, r, "session renewal error", "error", err)
			return
		}
		h.sessionManager.Put(r.Context(), session.UserIDKey, res.User.ID)
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)

	case auth.OutcomeUnknownUser:
		renderPage(w, r, h.renderer, http.StatusUnauthorized, "login", render.TemplateData{
			Title:    "Log in",
			Error:    msgUserNotFound,
			Username: username,
		})

	default:
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// Logout destroys the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		logAndInternalError(w, r, "failed to destroy session", "error", err)
		return
	}
	http.Redirect(w, r, RouteRoot, http.StatusSeeOther)
}
