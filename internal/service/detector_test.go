// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/socmon/internal/auth"
	"github.com/olegiv/socmon/internal/model"
)

func TestDetectorTriggersAtExactlyThreshold(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, s, DetectorConfig{Threshold: 3})
			h.register(t, "bob", "pw1")

			for i := 1; i <= 2; i++ {
				res := h.attempt(t, "bob", "wrong")
				assert.Nil(t, res.Incident, "attempt %d opened an incident", i)
			}
			assert.Equal(t, 0, h.alerts.count())

			res := h.attempt(t, "bob", "wrong")
			require.NotNil(t, res.Incident, "third failure should open an incident")
			assert.Equal(t, model.SeverityCritical, res.Incident.Severity)
			assert.Equal(t, model.StatusOpen, res.Incident.Status)
			assert.Equal(t, model.ActionBruteForceAlert, res.Incident.Action)
			assert.Equal(t, "203.0.113.7", res.Incident.IP)

			critical := h.entries(t, "bob", model.ActionBruteForceAlert)
			require.Len(t, critical, 1)
			require.Equal(t, 1, h.alerts.count())
			assert.Equal(t, AlertMessage, h.alerts.messages[0])
			assert.Len(t, h.notifier.incidents, 1)
		})
	}
}

func TestDetectorFourthFailureDoesNotRetrigger(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, s, DetectorConfig{Threshold: 3})
			h.register(t, "bob", "pw1")

			for i := 0; i < 3; i++ {
				h.attempt(t, "bob", "wrong")
			}
			for i := 4; i <= 7; i++ {
				res := h.attempt(t, "bob", "wrong")
				assert.Nil(t, res.Incident, "failure %d re-triggered", i)
			}

			assert.Len(t, h.entries(t, "bob", model.ActionBruteForceAlert), 1)
			assert.Len(t, h.entries(t, "bob", model.ActionLoginFailed), 7)
			assert.Equal(t, 1, h.alerts.count())
		})
	}
}

func TestDetectorSuccessDoesNotResetByDefault(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, s, DetectorConfig{Threshold: 3})
			h.register(t, "bob", "pw1")

			h.attempt(t, "bob", "wrong")
			h.attempt(t, "bob", "wrong")
			res := h.attempt(t, "bob", "pw1")
			require.Equal(t, auth.OutcomeMatched, res.Outcome)

			// The third failure overall still triggers
			res = h.attempt(t, "bob", "wrong")
			require.NotNil(t, res.Incident)

			for i := 0; i < 3; i++ {
				h.attempt(t, "bob", "wrong")
			}
			assert.Len(t, h.entries(t, "bob", model.ActionBruteForceAlert), 1)
		})
	}
}

func TestDetectorResetOnSuccess(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, s, DetectorConfig{Threshold: 3, ResetOnSuccess: true})
			h.register(t, "bob", "pw1")

			h.attempt(t, "bob", "wrong")
			h.attempt(t, "bob", "wrong")
			h.attempt(t, "bob", "pw1")
			res := h.attempt(t, "bob", "wrong")
			assert.Nil(t, res.Incident, "success should have reset the window")

			h.attempt(t, "bob", "wrong")
			res = h.attempt(t, "bob", "wrong")
			require.NotNil(t, res.Incident)

			// A fresh run after another success fires again
			h.attempt(t, "bob", "pw1")
			for i := 0; i < 3; i++ {
				res = h.attempt(t, "bob", "wrong")
			}
			require.NotNil(t, res.Incident)
			assert.Len(t, h.entries(t, "bob", model.ActionBruteForceAlert), 2)
		})
	}
}

func TestDetectorCustomThreshold(t *testing.T) {
	h := newHarness(t, newMemory(), DetectorConfig{Threshold: 5})
	h.register(t, "bob", "pw1")

	var opened int
	for i := 0; i < 6; i++ {
		if res := h.attempt(t, "bob", "wrong"); res.Incident != nil {
			opened++
			assert.Equal(t, 4, i, "incident should open on the fifth failure")
		}
	}
	assert.Equal(t, 1, opened)
	assert.Equal(t, 5, h.detector.Threshold())
}

func TestDetectorDefaultsThreshold(t *testing.T) {
	d := NewDetector(newMemory(), DetectorConfig{}, nil, nil, discardLogger())
	assert.Equal(t, DefaultThreshold, d.Threshold())
}

func TestDetectorIdentitiesAreIndependent(t *testing.T) {
	h := newHarness(t, newMemory(), DetectorConfig{Threshold: 3})
	h.register(t, "bob", "pw1")
	h.register(t, "eve", "pw2")

	h.attempt(t, "bob", "wrong")
	h.attempt(t, "eve", "wrong")
	h.attempt(t, "bob", "wrong")
	h.attempt(t, "eve", "wrong")
	assert.Empty(t, h.entries(t, "bob", model.ActionBruteForceAlert))

	assert.NotNil(t, h.attempt(t, "bob", "wrong").Incident)
	assert.NotNil(t, h.attempt(t, "eve", "wrong").Incident)
}

func TestDetectorConcurrentThirdAndFourthFailure(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for round := 0; round < 5; round++ {
				h := newHarness(t, s, DetectorConfig{Threshold: 3})
				user := "alice" + string(rune('a'+round))
				h.register(t, user, "secret")

				h.attempt(t, user, "wrong")
				h.attempt(t, user, "wrong")

				var wg sync.WaitGroup
				for i := 0; i < 2; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, _ = h.login.Authenticate(context.Background(), LoginRequest{
							Username: user, Password: "wrong", IP: "198.51.100.1",
						})
					}()
				}
				wg.Wait()

				assert.Len(t, h.entries(t, user, model.ActionLoginFailed), 4)
				assert.Len(t, h.entries(t, user, model.ActionBruteForceAlert), 1,
					"round %d: want exactly one incident", round)
				assert.Equal(t, 1, h.alerts.count())
			}
		})
	}
}

func TestDetectorStorageFailureIsSwallowed(t *testing.T) {
	s := newMemory()
	h := newHarness(t, s, DetectorConfig{Threshold: 3})
	h.register(t, "bob", "pw1")

	h.attempt(t, "bob", "wrong")
	h.attempt(t, "bob", "wrong")
	h.attempt(t, "bob", "wrong")

	s.FailAppends(assert.AnError)
	res := h.attempt(t, "bob", "wrong")
	assert.Equal(t, auth.OutcomeMismatch, res.Outcome)
	assert.Nil(t, res.Incident)

	res = h.attempt(t, "bob", "pw1")
	assert.Equal(t, auth.OutcomeMatched, res.Outcome, "login still answers when logging fails")

	s.FailAppends(nil)
	assert.Len(t, h.entries(t, "bob", model.ActionBruteForceAlert), 1)
}
