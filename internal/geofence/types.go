// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package geofence

import (
	"context"
	"fmt"
	"time"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// TransitionKind identifies which edge of a geofence boundary was crossed.
type TransitionKind string

const (
	TransitionEntry TransitionKind = "entry"
	TransitionExit  TransitionKind = "exit"
)

// TransitionEvent is an ephemeral edge crossing produced by the detector.
// It is consumed immediately by the dispatcher and never persisted as-is.
type TransitionEvent struct {
	UserID       int64          `json:"user_id"`
	GeofenceID   int64          `json:"geofence_id"`
	Kind         TransitionKind `json:"kind"`
	GeofenceName string         `json:"geofence_name"`
}

// AlertKind maps the transition edge to the persisted alert type.
func (e TransitionEvent) AlertKind() models.AlertKind {
	if e.Kind == TransitionEntry {
		return models.AlertKindEntry
	}
	return models.AlertKindExit
}

// Message renders the human-readable alert text.
func (e TransitionEvent) Message() string {
	if e.Kind == TransitionEntry {
		return fmt.Sprintf("Entered geofence: %s", e.GeofenceName)
	}
	return fmt.Sprintf("Exited geofence: %s", e.GeofenceName)
}

// Evaluation is the result of running the detector and the safe-zone
// aggregator against one freshly persisted position.
type Evaluation struct {
	Events      []TransitionEvent `json:"events"`
	IsOutOfZone bool              `json:"is_out_of_zone"`
}

// AlertNotice is the denormalized new_alert payload broadcast to real-time
// subscribers. Display fields are fetched once at dispatch time.
type AlertNotice struct {
	ID                     int64            `json:"id"`
	UserID                 int64            `json:"user_id"`
	GeofenceID             int64            `json:"geofence_id"`
	Kind                   models.AlertKind `json:"alert_type"`
	Message                string           `json:"message"`
	IsRead                 bool             `json:"is_read"`
	NotificationDispatched bool             `json:"notification_sent"`
	CreatedAt              time.Time        `json:"created_at"`
	Username               string           `json:"username,omitempty"`
	FullName               string           `json:"full_name,omitempty"`
	GeofenceName           string           `json:"geofence_name,omitempty"`
}

// AssignmentStore resolves the active geofences assigned to a user together
// with the per-assignment edge flags.
type AssignmentStore interface {
	ActiveAssignedGeofences(ctx context.Context, userID int64) ([]models.AssignedGeofence, error)
}

// PositionStore resolves a user's previous position. The lookup must return
// the most recently observed row whose sequence id is strictly less than
// beforeSeq, which excludes the sample currently being evaluated.
// Returns (nil, nil) when the user has no earlier position.
type PositionStore interface {
	PreviousPosition(ctx context.Context, userID, beforeSeq int64) (*models.Position, error)
}

// AlertStore persists alerts and their dispatch outcomes.
type AlertStore interface {
	// AppendAlert inserts the alert and fills its generated ID and CreatedAt.
	AppendAlert(ctx context.Context, alert *models.Alert) error

	// RecordDispatchOutcome marks the alert's notify stage as attempted and
	// stores the per-channel outcome record.
	RecordDispatchOutcome(ctx context.Context, alertID int64, outcomes []models.ChannelOutcome) error
}

// UserStore resolves display and contact fields for broadcast and
// notification delivery.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// AlertBroadcaster fans a persisted alert out to real-time subscribers.
// Delivery is fire-and-forget; errors are logged by the dispatcher, never
// surfaced to the caller.
type AlertBroadcaster interface {
	BroadcastAlert(ctx context.Context, notice *AlertNotice) error
}

// Notifier drives the configured best-effort notification channels. It never
// returns an error: each channel's result is captured in its outcome and one
// channel's failure must not block another.
type Notifier interface {
	Dispatch(ctx context.Context, n Notification) []models.ChannelOutcome
}

// Notification is the channel-agnostic delivery request.
type Notification struct {
	UserID  int64
	Email   string
	Phone   string
	Message string
	Kind    models.AlertKind
}
