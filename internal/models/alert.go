// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// AlertKind identifies which geofence edge produced an alert.
type AlertKind string

const (
	AlertKindEntry AlertKind = "geofence_entry"
	AlertKindExit  AlertKind = "geofence_exit"
)

// Alert list query limits.
const (
	AlertsDefaultLimit = 50
	AlertsMaxLimit     = 200
)

// Alert is a persisted geofence crossing. Created exclusively by the alert
// dispatcher; the read side only flips IsRead or deletes rows.
//
// NotificationDispatched records that the notify stage ran, not that any
// channel actually delivered. ChannelOutcomes carries the per-channel
// attempted/succeeded record for callers that need the distinction.
type Alert struct {
	ID                     int64           `json:"id"`
	UserID                 int64           `json:"user_id"`
	GeofenceID             int64           `json:"geofence_id"`
	Kind                   AlertKind       `json:"alert_type"`
	Message                string          `json:"message"`
	IsRead                 bool            `json:"is_read"`
	NotificationDispatched bool            `json:"notification_sent"`
	ChannelOutcomes        json.RawMessage `json:"channel_outcomes,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// ChannelOutcome records one notification channel's dispatch result.
type ChannelOutcome struct {
	Channel   string `json:"channel"`
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// EncodeChannelOutcomes marshals outcomes for storage on the alert row.
func EncodeChannelOutcomes(outcomes []ChannelOutcome) (json.RawMessage, error) {
	return json.Marshal(outcomes)
}
