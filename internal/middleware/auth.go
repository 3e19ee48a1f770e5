// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, login throttling and response hardening.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/session"
	"github.com/olegiv/socmon/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyUser holds the signed-in *model.User.
const ContextKeyUser ContextKey = "user"

// AdminsOnly is the body of every rejected admin request. It is the same
// for anonymous and non-admin callers and never mentions the target.
const AdminsOnly = "Admins only"

// UserLoader fetches accounts by id.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
}

// LoadUser puts the session's user into the request context. A session
// pointing at a vanished account is destroyed and the request continues
// anonymously.
func LoadUser(sm *scs.SessionManager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sm.GetInt64(r.Context(), session.UserIDKey)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					slog.ErrorContext(r.Context(), "failed to load session user", "error", err, "user_id", userID)
				}
				_ = sm.Destroy(r.Context())
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the signed-in user, or nil.
func GetUser(r *http.Request) *model.User {
	user, _ := r.Context().Value(ContextKeyUser).(*model.User)
	return user
}

// RequireAuth redirects anonymous requests to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everyone but admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if !user.IsAdmin() {
			var userID int64
			if user != nil {
				userID = user.ID
			}
			slog.WarnContext(r.Context(), "access denied",
				"status", http.StatusForbidden,
				"method", r.Method,
				"path", r.URL.Path,
				"user_id", userID,
				"remote_addr", r.RemoteAddr,
			)
			http.Error(w, AdminsOnly, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
