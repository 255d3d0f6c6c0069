// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package events carries the location pipeline over NATS JetStream using
// Watermill. Ingestion publishes raw position events; the evaluation
// pipeline consumes them, runs the geofence engine, and publishes enriched
// positions and created alerts for the real-time bridge to fan out.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// NATS subjects. All fall under the stream's locations.> and alerts.>
// subject filters.
const (
	// TopicLocationUpdated carries raw positions from ingestion.
	TopicLocationUpdated = "locations.updated"

	// TopicLocationEnriched carries evaluated positions with the aggregate
	// zone status, consumed by the WebSocket bridge.
	TopicLocationEnriched = "locations.enriched"

	// TopicAlertCreated carries persisted alerts, consumed by the WebSocket
	// bridge.
	TopicAlertCreated = "alerts.created"

	// TopicDeadLetter receives messages that exhausted their retries.
	TopicDeadLetter = "locations.dlq"
)

// SchemaVersion is the current event schema version. Increment on breaking
// payload changes.
const SchemaVersion = 1

// LocationEvent is the canonical position payload on the bus. Enrichment
// fields are zero on locations.updated and populated on locations.enriched.
type LocationEvent struct {
	SchemaVersion int    `json:"schema_version,omitempty"`
	EventID       string `json:"event_id"`

	UserID     int64     `json:"user_id"`
	SequenceID int64     `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Altitude   *float64  `json:"altitude,omitempty"`
	ObservedAt time.Time `json:"timestamp"`

	// Enrichment, present only on locations.enriched.
	IsOutOfZone bool   `json:"is_out_of_zone,omitempty"`
	Username    string `json:"username,omitempty"`
	FullName    string `json:"full_name,omitempty"`
}

// NewLocationEvent wraps a persisted position in a bus event.
func NewLocationEvent(pos *models.Position) *LocationEvent {
	return &LocationEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		UserID:        pos.UserID,
		SequenceID:    pos.SequenceID,
		Latitude:      pos.Latitude,
		Longitude:     pos.Longitude,
		Accuracy:      pos.Accuracy,
		Speed:         pos.Speed,
		Heading:       pos.Heading,
		Altitude:      pos.Altitude,
		ObservedAt:    pos.ObservedAt,
	}
}

// Position reconstructs the stored position from the event payload.
func (e *LocationEvent) Position() *models.Position {
	return &models.Position{
		SequenceID: e.SequenceID,
		UserID:     e.UserID,
		Latitude:   e.Latitude,
		Longitude:  e.Longitude,
		Accuracy:   e.Accuracy,
		Speed:      e.Speed,
		Heading:    e.Heading,
		Altitude:   e.Altitude,
		ObservedAt: e.ObservedAt,
	}
}

// Validate checks the fields every consumer depends on.
func (e *LocationEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.UserID == 0 {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if e.SequenceID == 0 {
		return &ValidationError{Field: "id", Message: "required"}
	}
	if e.Latitude < models.LatitudeMin || e.Latitude > models.LatitudeMax {
		return &ValidationError{Field: "latitude", Message: "out of range"}
	}
	if e.Longitude < models.LongitudeMin || e.Longitude > models.LongitudeMax {
		return &ValidationError{Field: "longitude", Message: "out of range"}
	}
	return nil
}

// AlertEvent is the persisted-alert payload on the bus.
type AlertEvent struct {
	SchemaVersion int                  `json:"schema_version,omitempty"`
	EventID       string               `json:"event_id"`
	Alert         geofence.AlertNotice `json:"alert"`
}

// NewAlertEvent wraps a dispatched alert notice in a bus event.
func NewAlertEvent(notice *geofence.AlertNotice) *AlertEvent {
	return &AlertEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Alert:         *notice,
	}
}

// Validate checks the fields every consumer depends on.
func (e *AlertEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Alert.ID == 0 {
		return &ValidationError{Field: "alert.id", Message: "required"}
	}
	if e.Alert.UserID == 0 {
		return &ValidationError{Field: "alert.user_id", Message: "required"}
	}
	return nil
}

// ValidationError reports a missing or malformed event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
