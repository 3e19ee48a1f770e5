// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/socmon/internal/model"
)

func TestIncidentCloseIsIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, s, DetectorConfig{Threshold: 3})
			h.register(t, "bob", "pw1")
			ctx := context.Background()

			var incident *model.LogEntry
			for i := 0; i < 3; i++ {
				incident = h.attempt(t, "bob", "wrong").Incident
			}
			require.NotNil(t, incident)

			require.NoError(t, h.tracker.Close(ctx, incident.ID))
			require.NoError(t, h.tracker.Close(ctx, incident.ID))
			require.NoError(t, h.tracker.Close(ctx, 424242), "unknown id is not an error")

			got, err := s.GetLogEntry(ctx, incident.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusClosed, got.Status)
			assert.Equal(t, model.SeverityCritical, got.Severity)
		})
	}
}

func TestIncidentList(t *testing.T) {
	h := newHarness(t, newMemory(), DetectorConfig{Threshold: 3})
	h.register(t, "bob", "pw1")
	ctx := context.Background()

	h.attempt(t, "bob", "pw1")
	h.attempt(t, "ghost", "x")
	for i := 0; i < 3; i++ {
		h.attempt(t, "bob", "wrong")
	}

	all, err := h.tracker.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, model.ActionBruteForceAlert, all[0].Action, "newest first")
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID, all[i].ID)
	}

	incidents, err := h.tracker.List(ctx, Filter{MinSeverity: model.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, incidents, 4)
	for _, e := range incidents {
		assert.True(t, e.IsIncident())
	}

	open, err := h.tracker.List(ctx, Filter{Status: model.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 5)
}

func TestIncidentSummary(t *testing.T) {
	h := newHarness(t, newMemory(), DetectorConfig{Threshold: 3})
	h.register(t, "bob", "pw1")
	ctx := context.Background()

	h.attempt(t, "bob", "pw1")
	h.attempt(t, "ghost", "x")
	var incident *model.LogEntry
	for i := 0; i < 3; i++ {
		incident = h.attempt(t, "bob", "wrong").Incident
	}

	sum, err := h.tracker.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.BySeverity[model.SeverityHigh])
	assert.Equal(t, int64(1), sum.BySeverity[model.SeverityCritical])
	assert.Equal(t, int64(4), sum.Incidents())
	assert.Equal(t, int64(5), sum.Total())

	require.NoError(t, h.tracker.Close(ctx, incident.ID))
	sum, err = h.tracker.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Incidents())
}
