// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the escalation tier of a log entry.
type Severity string

// Severities, lowest first.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns the position of s in the escalation order, or -1 if s is unknown.
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is the same as or above min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank() && s.Rank() >= 0
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if s.Rank() < 0 {
		return "", fmt.Errorf("unknown severity %q", v)
	}
	return s, nil
}

// Status is the lifecycle state of a log entry.
type Status string

// Statuses. The only transition ever applied is toward StatusClosed.
const (
	StatusInvestigating Status = "Investigating"
	StatusOpen          Status = "Open"
	StatusClosed        Status = "Closed"
)

// Statuses lists every status.
var Statuses = []Status{StatusInvestigating, StatusOpen, StatusClosed}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(v string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(string(s), strings.TrimSpace(v)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// Action tags written to the security log.
const (
	ActionLoginSuccess    = "Successful Login"
	ActionLoginFailed     = "Failed Login Attempt"
	ActionUnknownUser     = "Login with non-existing user"
	ActionBruteForceAlert = "BRUTE FORCE ATTACK DETECTED"
)

// LogEntry is one immutable record of an authentication-relevant event.
// Only Status ever changes after insertion.
type LogEntry struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent,omitempty"`
	Time      time.Time `json:"time"`
	Severity  Severity  `json:"severity"`
	Status    Status    `json:"status"`
}

// IsIncident reports whether the entry is a security incident (severity HIGH or above).
func (e LogEntry) IsIncident() bool {
	return e.Severity.AtLeast(SeverityHigh)
}

// IsClosed reports whether the entry has been closed.
func (e LogEntry) IsClosed() bool {
	return e.Status == StatusClosed
}
