// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify fans incident events out to external sinks: a signed
// webhook and a Redis channel. Delivery is asynchronous and best effort.
package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"

	"github.com/olegiv/socmon/internal/model"
)

// Event types.
const (
	EventIncidentOpened = "incident.opened"
	EventIncidentDigest = "incident.digest"
)

// Event is the JSON envelope sent to every sink.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// IncidentData describes an opened brute-force incident.
type IncidentData struct {
	IncidentID int64          `json:"incident_id"`
	Username   string         `json:"username"`
	IP         string         `json:"ip"`
	Country    string         `json:"country,omitempty"`
	Browser    string         `json:"browser,omitempty"`
	OS         string         `json:"os,omitempty"`
	Bot        bool           `json:"bot,omitempty"`
	Severity   model.Severity `json:"severity"`
	Status     model.Status   `json:"status"`
	DetectedAt time.Time      `json:"detected_at"`
}

// DigestData summarizes unclosed log entries.
type DigestData struct {
	BySeverity map[model.Severity]int64 `json:"by_severity"`
	Incidents  int64                    `json:"incidents"`
	Total      int64                    `json:"total"`
}

// newIncidentData builds the payload for e. country may be empty.
func newIncidentData(e model.LogEntry, country string) IncidentData {
	d := IncidentData{
		IncidentID: e.ID,
		Username:   e.Username,
		IP:         e.IP,
		Country:    country,
		Severity:   e.Severity,
		Status:     e.Status,
		DetectedAt: e.Time,
	}
	if e.UserAgent != "" {
		ua := useragent.Parse(e.UserAgent)
		d.Browser = ua.Name
		d.OS = ua.OS
		d.Bot = ua.Bot
	}
	return d
}
