// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package metrics

import (
	"testing"
	"time"
)

// The collectors register on the default registry at package load; these
// tests exercise the helpers so label cardinality mistakes panic here rather
// than in production.
func TestRecordHelpers(t *testing.T) {
	RecordPositionIngested()
	RecordGeofenceTransition("entry")
	RecordGeofenceTransition("exit")
	RecordEvaluationFailure("assignments")
	RecordAlertDispatched("geofence_entry")
	RecordAlertDispatchFailure()
	RecordNotificationOutcome("email", true)
	RecordNotificationOutcome("sms", false)
	RecordWebSocketConnect()
	RecordWebSocketMessage("new_alert")
	RecordWebSocketDisconnect()
	RecordEventPublished("locations.updated", nil)
	RecordEventConsumed("locations.updated", nil)
	RecordHTTPRequest("POST", "/api/v1/locations", "2xx", 5*time.Millisecond)
}
