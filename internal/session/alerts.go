// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/socmon/internal/service"
)

// Alerts holds at most one pending message per session. The session is the
// one loaded into ctx by the session manager's LoadAndSave middleware.
//
// The pending message is written through to the session store and taken from
// it under a per-token lock, so overlapping requests of one session cannot
// both observe it. The lock is process local.
type Alerts struct {
	sm    *scs.SessionManager
	locks *service.KeyedMutex
}

// NewAlerts returns Alerts stored in sm's sessions.
func NewAlerts(sm *scs.SessionManager) *Alerts {
	return &Alerts{sm: sm, locks: service.NewKeyedMutex()}
}

// Queue sets the pending message, replacing any earlier one, and commits the
// session so other requests of the same session see it.
func (a *Alerts) Queue(ctx context.Context, message string) {
	a.sm.Put(ctx, alertKey, message)

	if token := a.sm.Token(ctx); token != "" {
		unlock := a.locks.Lock(token)
		defer unlock()
	}
	if _, _, err := a.sm.Commit(ctx); err != nil {
		slog.WarnContext(ctx, "failed to commit session alert", "error", err)
	}
}

// TakeAndClear returns the pending message and removes it, so a second call
// reports none, also from another request of the same session.
func (a *Alerts) TakeAndClear(ctx context.Context) (string, bool) {
	token := a.sm.Token(ctx)
	if token == "" {
		// never committed, so no other request holds this session
		msg := a.sm.PopString(ctx, alertKey)
		return msg, msg != ""
	}

	unlock := a.locks.Lock(token)
	defer unlock()

	msg, err := a.take(token)
	// the request copy may be stale and must not restore the alert on commit
	a.sm.Remove(ctx, alertKey)
	if err != nil {
		slog.WarnContext(ctx, "failed to take session alert", "error", err)
		return "", false
	}
	return msg, msg != ""
}

// take removes the pending message from the stored session data for token.
func (a *Alerts) take(token string) (string, error) {
	b, found, err := a.sm.Store.Find(token)
	if err != nil {
		return "", fmt.Errorf("finding session: %w", err)
	}
	if !found {
		return "", nil
	}

	deadline, values, err := a.sm.Codec.Decode(b)
	if err != nil {
		return "", fmt.Errorf("decoding session: %w", err)
	}
	msg, _ := values[alertKey].(string)
	if msg == "" {
		return "", nil
	}

	delete(values, alertKey)
	b, err = a.sm.Codec.Encode(deadline, values)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	if err := a.sm.Store.Commit(token, b, deadline); err != nil {
		return "", fmt.Errorf("committing session: %w", err)
	}
	return msg, nil
}
