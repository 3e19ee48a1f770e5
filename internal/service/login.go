// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"

	"github.com/olegiv/socmon/internal/auth"
	"github.com/olegiv/socmon/internal/model"
)

// Verifier checks a username and password.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (auth.Verification, error)
}

// LoginRequest is one authentication attempt.
type LoginRequest struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult reports how an attempt was classified. Incident is set when
// the attempt opened a brute-force incident.
type LoginResult struct {
	Outcome  auth.Outcome
	User     model.User
	Incident *model.LogEntry
}

// LoginService runs an authentication attempt through credential checking,
// logging and brute-force detection.
type LoginService struct {
	creds    Verifier
	attempts *AttemptLogger
	detector *Detector
	alerts   AlertQueue
	locks    *KeyedMutex
	logger   *slog.Logger
}

// NewLoginService creates a LoginService.
func NewLoginService(creds Verifier, attempts *AttemptLogger, detector *Detector, alerts AlertQueue, logger *slog.Logger) *LoginService {
	return &LoginService{
		creds:    creds,
		attempts: attempts,
		detector: detector,
		alerts:   alerts,
		locks:    NewKeyedMutex(),
		logger:   logger,
	}
}

// Authenticate classifies req and records exactly one log entry for it.
// Logging and detection failures are logged and do not change the result.
// Only a failed credential lookup returns an error.
func (s *LoginService) Authenticate(ctx context.Context, req LoginRequest) (LoginResult, error) {
	v, err := s.creds.Verify(ctx, req.Username, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	result := LoginResult{Outcome: v.Outcome, User: v.User}

	switch v.Outcome {
	case auth.OutcomeMatched:
		_, _ = s.attempts.Append(ctx, s.attempt(req, model.ActionLoginSuccess, model.SeverityLow, model.StatusClosed))

	case auth.OutcomeUnknownUser:
		_, _ = s.attempts.Append(ctx, s.attempt(req, model.ActionUnknownUser, model.SeverityMedium, model.StatusOpen))

	default:
		result.Incident = s.recordFailure(ctx, req)
	}

	s.logger.InfoContext(ctx, "login attempt",
		"username", req.Username, "ip", req.IP, "outcome", v.Outcome.String(),
		"incident", result.Incident != nil)
	return result, nil
}

// recordFailure appends the failure and evaluates the window while holding
// the username's lock, so concurrent failures are counted one at a time.
func (s *LoginService) recordFailure(ctx context.Context, req LoginRequest) *model.LogEntry {
	unlock := s.locks.Lock(req.Username)
	defer unlock()

	// Without the new row the window would be re-read unchanged.
	if _, err := s.attempts.Append(ctx, s.attempt(req, model.ActionLoginFailed, model.SeverityHigh, model.StatusOpen)); err != nil {
		return nil
	}

	incident, opened, err := s.detector.Evaluate(ctx, req.Username, req.IP, req.UserAgent)
	if err != nil || !opened {
		return nil
	}

	if s.alerts != nil {
		s.alerts.Queue(ctx, AlertMessage)
	}
	return &incident
}

func (s *LoginService) attempt(req LoginRequest, action string, sev model.Severity, status model.Status) Attempt {
	return Attempt{
		Username:  req.Username,
		Action:    action,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Severity:  sev,
		Status:    status,
	}
}
