// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/store"
)

// Filter narrows an incident listing. The zero value lists everything.
type Filter = store.LogFilter

// Summary counts unclosed log entries per severity.
type Summary struct {
	BySeverity map[model.Severity]int64 `json:"by_severity"`
}

// Incidents returns the number of unclosed entries at HIGH or above.
func (s Summary) Incidents() int64 {
	var n int64
	for sev, c := range s.BySeverity {
		if sev.AtLeast(model.SeverityHigh) {
			n += c
		}
	}
	return n
}

// Total returns the number of unclosed entries.
func (s Summary) Total() int64 {
	var n int64
	for _, c := range s.BySeverity {
		n += c
	}
	return n
}

// IncidentTracker lists security log entries and closes them.
type IncidentTracker struct {
	logs    LogStore
	metrics Metrics
	logger  *slog.Logger
}

// NewIncidentTracker creates an IncidentTracker. A nil metrics disables counting.
func NewIncidentTracker(logs LogStore, metrics Metrics, logger *slog.Logger) *IncidentTracker {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &IncidentTracker{logs: logs, metrics: metrics, logger: logger}
}

// Close marks entry id Closed. Closing an unknown or already closed entry
// succeeds without changes.
func (t *IncidentTracker) Close(ctx context.Context, id int64) error {
	var closed bool
	err := t.logs.WithinTx(ctx, func(logs store.LogRepository) error {
		entry, err := logs.GetLogEntry(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.IsClosed() {
			return nil
		}
		if err := logs.CloseLogEntry(ctx, id); err != nil {
			return err
		}
		closed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("closing entry %d: %w", id, err)
	}

	if closed {
		t.metrics.IncidentClosed()
		t.logger.InfoContext(ctx, "incident closed", "id", id)
	}
	return nil
}

// List returns entries matching f, newest first.
func (t *IncidentTracker) List(ctx context.Context, f Filter) ([]model.LogEntry, error) {
	entries, err := t.logs.ListLogEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// Summary counts unclosed entries per severity.
func (t *IncidentTracker) Summary(ctx context.Context) (Summary, error) {
	counts, err := t.logs.CountUnclosedBySeverity(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("counting entries: %w", err)
	}
	return Summary{BySeverity: counts}, nil
}
