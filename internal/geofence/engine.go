// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package geofence implements the transition engine: edge-triggered
// entry/exit detection, the level-triggered safe-zone aggregate, and the
// alert dispatch pipeline that turns transitions into persisted alerts,
// real-time broadcasts, and best-effort notifications.
package geofence

import (
	"context"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// Engine evaluates freshly persisted positions against the user's assigned
// geofences. It holds no per-user state: the previous position is looked up
// from the store on every evaluation, keyed by sequence id, so replays and
// out-of-order delivery cannot corrupt detection.
type Engine struct {
	assignments AssignmentStore
	positions   PositionStore
}

// NewEngine builds an evaluation engine over the given stores.
func NewEngine(assignments AssignmentStore, positions PositionStore) *Engine {
	return &Engine{
		assignments: assignments,
		positions:   positions,
	}
}

// Evaluate runs transition detection and the safe-zone aggregate for one
// position that has already been durably stored.
//
// Evaluation is best-effort: a failed assignment or previous-position lookup
// degrades to an empty result (no events, IsOutOfZone false) and is logged,
// never propagated. A missed evaluation loses at most one edge; the next
// sample re-derives state from the store.
func (e *Engine) Evaluate(ctx context.Context, pos *models.Position) Evaluation {
	zones, err := e.assignments.ActiveAssignedGeofences(ctx, pos.UserID)
	if err != nil {
		logging.Warn().
			Err(err).
			Int64("user_id", pos.UserID).
			Int64("sequence_id", pos.SequenceID).
			Msg("Geofence evaluation skipped: assignment lookup failed")
		metrics.RecordEvaluationFailure("assignments")
		return Evaluation{}
	}
	if len(zones) == 0 {
		return Evaluation{}
	}

	prev, err := e.positions.PreviousPosition(ctx, pos.UserID, pos.SequenceID)
	if err != nil {
		logging.Warn().
			Err(err).
			Int64("user_id", pos.UserID).
			Int64("sequence_id", pos.SequenceID).
			Msg("Geofence evaluation skipped: previous position lookup failed")
		metrics.RecordEvaluationFailure("previous_position")
		return Evaluation{}
	}

	return Evaluation{
		Events:      detectTransitions(prev, pos, zones),
		IsOutOfZone: IsOutOfZone(pos, zones),
	}
}

// detectTransitions compares membership between the previous and current
// position for every assigned geofence and emits one event per crossed edge
// whose assignment flag is set. A nil previous position means the user was
// outside every geofence, so a first sample inside a zone is an entry.
func detectTransitions(prev, pos *models.Position, zones []models.AssignedGeofence) []TransitionEvent {
	var events []TransitionEvent
	for i := range zones {
		zone := &zones[i]

		wasInside := prev != nil && IsInside(prev.Latitude, prev.Longitude, &zone.Geofence)
		isInside := IsInside(pos.Latitude, pos.Longitude, &zone.Geofence)

		switch {
		case !wasInside && isInside && zone.AlertOnEntry:
			events = append(events, TransitionEvent{
				UserID:       pos.UserID,
				GeofenceID:   zone.ID,
				Kind:         TransitionEntry,
				GeofenceName: zone.Name,
			})
			metrics.RecordGeofenceTransition(string(TransitionEntry))
		case wasInside && !isInside && zone.AlertOnExit:
			events = append(events, TransitionEvent{
				UserID:       pos.UserID,
				GeofenceID:   zone.ID,
				Kind:         TransitionExit,
				GeofenceName: zone.Name,
			})
			metrics.RecordGeofenceTransition(string(TransitionExit))
		}
	}
	return events
}
