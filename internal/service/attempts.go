// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/store"
)

// Attempt describes one authentication-relevant event to record.
type Attempt struct {
	Username  string
	Action    string
	IP        string
	UserAgent string
	Severity  model.Severity
	Status    model.Status
}

// AttemptLogger appends entries to the security log. Append returns only
// after the entry is stored, so a following read observes it.
type AttemptLogger struct {
	logs    LogRepository
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAttemptLogger creates an AttemptLogger. A nil metrics disables counting.
func NewAttemptLogger(logs LogRepository, metrics Metrics, logger *slog.Logger) *AttemptLogger {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &AttemptLogger{logs: logs, metrics: metrics, logger: logger, now: time.Now}
}

// Append stores a and returns the new entry id. Errors are logged and
// returned; callers treat them as best effort.
func (l *AttemptLogger) Append(ctx context.Context, a Attempt) (int64, error) {
	entry, err := l.logs.CreateLogEntry(ctx, a.params(l.now()))
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to append security log entry",
			"username", a.Username, "action", a.Action, "error", err)
		return 0, fmt.Errorf("appending log entry: %w", err)
	}

	l.metrics.AttemptLogged(entry)
	l.logger.DebugContext(ctx, "security log entry appended",
		"id", entry.ID, "username", entry.Username, "action", entry.Action, "severity", entry.Severity)
	return entry.ID, nil
}

func (a Attempt) params(now time.Time) store.CreateLogEntryParams {
	return store.CreateLogEntryParams{
		Username:  a.Username,
		Action:    a.Action,
		IP:        a.IP,
		UserAgent: a.UserAgent,
		CreatedAt: now,
		Severity:  a.Severity,
		Status:    a.Status,
	}
}
