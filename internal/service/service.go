// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the attempt-evaluation and incident-lifecycle
// engine: recording authentication outcomes, detecting brute-force runs and
// managing incidents.
package service

import (
	"context"

	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/store"
)

// AlertMessage is queued for a session whose login attempt opened a
// brute-force incident.
const AlertMessage = "SECURITY ALERT: Multiple failed login attempts detected!"

// LogRepository is the security log storage the services read and append to.
type LogRepository = store.LogRepository

// Transactor runs fn against a transaction-scoped repository.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(store.LogRepository) error) error
}

// LogStore is a LogRepository that can also run transactions.
type LogStore interface {
	LogRepository
	Transactor
}

// Metrics receives engine counters.
type Metrics interface {
	AttemptLogged(e model.LogEntry)
	IncidentOpened(e model.LogEntry)
	IncidentClosed()
}

// Notifier is told about newly opened incidents. It must not block.
type Notifier interface {
	NotifyIncident(ctx context.Context, e model.LogEntry)
}

// AlertQueue stores a one-shot message for the session carried by ctx.
type AlertQueue interface {
	Queue(ctx context.Context, message string)
}

type nopMetrics struct{}

func (nopMetrics) AttemptLogged(model.LogEntry)  {}
func (nopMetrics) IncidentOpened(model.LogEntry) {}
func (nopMetrics) IncidentClosed()               {}

type nopNotifier struct{}

func (nopNotifier) NotifyIncident(context.Context, model.LogEntry) {}
