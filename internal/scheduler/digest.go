// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olegiv/socmon/internal/notify"
	"github.com/olegiv/socmon/internal/service"
)

// Summarizer counts unclosed log entries.
type Summarizer interface {
	Summary(ctx context.Context) (service.Summary, error)
}

// Publisher queues a notification event.
type Publisher interface {
	Publish(ctx context.Context, event notify.Event) bool
}

// DigestJob publishes an incident.digest event while unclosed incidents
// exist. Nothing is sent when there are none.
func DigestJob(incidents Summarizer, pub Publisher, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		sum, err := incidents.Summary(ctx)
		if err != nil {
			return fmt.Errorf("summarizing incidents: %w", err)
		}

		open := sum.Incidents()
		if open == 0 {
			return nil
		}

		logger.Info("open incidents digest", "incidents", open, "total", sum.Total())
		pub.Publish(ctx, notify.NewEvent(notify.EventIncidentDigest, notify.DigestData{
			BySeverity: sum.BySeverity,
			Incidents:  open,
			Total:      sum.Total(),
		}))
		return nil
	}
}
