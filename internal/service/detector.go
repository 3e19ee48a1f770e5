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

// DefaultThreshold is the number of failures that opens an incident.
const DefaultThreshold = 3

// DetectorConfig tunes the brute-force detector.
type DetectorConfig struct {
	// Threshold is K: an incident opens when exactly K failures exist.
	Threshold int
	// ResetOnSuccess counts only failures newer than the latest successful
	// login. Off by default: a success does not reset the run.
	ResetOnSuccess bool
}

// Detector opens a CRITICAL incident when an identity's failure count
// reaches exactly the threshold. It keeps no state outside the log.
type Detector struct {
	logs     LogStore
	cfg      DetectorConfig
	metrics  Metrics
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewDetector creates a Detector. Nil metrics or notifier are no-ops.
func NewDetector(logs LogStore, cfg DetectorConfig, metrics Metrics, notifier Notifier, logger *slog.Logger) *Detector {
	if cfg.Threshold < 1 {
		cfg.Threshold = DefaultThreshold
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Detector{
		logs:     logs,
		cfg:      cfg,
		metrics:  metrics,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Threshold returns K.
func (d *Detector) Threshold() int {
	return d.cfg.Threshold
}

// Evaluate inspects the failure window of username right after a failure was
// appended. The window read and the incident append share one transaction.
// Callers serialize Evaluate per username. It returns the incident entry
// and true when one was opened.
func (d *Detector) Evaluate(ctx context.Context, username, ip, userAgent string) (model.LogEntry, bool, error) {
	var (
		incident model.LogEntry
		opened   bool
	)

	err := d.logs.WithinTx(ctx, func(logs store.LogRepository) error {
		var afterID int64
		if d.cfg.ResetOnSuccess {
			id, err := logs.LatestEntryID(ctx, username, model.ActionLoginSuccess)
			if err != nil {
				return err
			}
			afterID = id
		}

		failures, err := logs.ListRecentByAction(ctx, store.ListRecentByActionParams{
			Username: username,
			Action:   model.ActionLoginFailed,
			AfterID:  afterID,
			Limit:    d.cfg.Threshold + 1,
		})
		if err != nil {
			return err
		}
		// More than K rows means this run already fired.
		if len(failures) != d.cfg.Threshold {
			return nil
		}

		incident, err = logs.CreateLogEntry(ctx, Attempt{
			Username:  username,
			Action:    model.ActionBruteForceAlert,
			IP:        ip,
			UserAgent: userAgent,
			Severity:  model.SeverityCritical,
			Status:    model.StatusOpen,
		}.params(d.now()))
		if err != nil {
			return fmt.Errorf("appending incident: %w", err)
		}
		opened = true
		return nil
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "brute force evaluation failed", "username", username, "error", err)
		return model.LogEntry{}, false, err
	}
	if !opened {
		return model.LogEntry{}, false, nil
	}

	d.logger.WarnContext(ctx, "brute force attack detected",
		"username", username, "ip", ip, "incident_id", incident.ID, "threshold", d.cfg.Threshold)
	d.metrics.AttemptLogged(incident)
	d.metrics.IncidentOpened(incident)
	d.notifier.NotifyIncident(ctx, incident)
	return incident, true, nil
}
