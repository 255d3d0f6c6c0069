// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package models

import "time"

// Geofence radius bounds in meters. Radii outside this range are rejected
// at the API boundary; the core never sees them.
const (
	GeofenceMinRadiusMeters = 10.0
	GeofenceMaxRadiusMeters = 50000.0
)

// Geofence is a named circular region. Only active geofences participate in
// transition evaluation. The core treats geofences as read-only input;
// mutation happens through the admin API.
type Geofence struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	CenterLatitude  float64   `json:"center_latitude"`
	CenterLongitude float64   `json:"center_longitude"`
	RadiusMeters    float64   `json:"radius_meters"`
	IsActive        bool      `json:"is_active"`
	CreatedBy       int64     `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Assignment relates a user to a geofence with independently configured edge
// flags. At most one assignment exists per (user, geofence) pair;
// re-assignment overwrites the flags rather than duplicating the row.
type Assignment struct {
	UserID       int64     `json:"user_id"`
	GeofenceID   int64     `json:"geofence_id"`
	AlertOnEntry bool      `json:"alert_on_entry"`
	AlertOnExit  bool      `json:"alert_on_exit"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignedGeofence is a geofence joined with the assignment flags for one
// user, as consumed by the transition detector.
type AssignedGeofence struct {
	Geofence
	AlertOnEntry bool `json:"alert_on_entry"`
	AlertOnExit  bool `json:"alert_on_exit"`
}

// IsSafeZone reports whether this assignment marks the geofence as a safe
// zone for the user: leaving it should raise an alert, and the aggregate
// out-of-zone status considers it.
func (g *AssignedGeofence) IsSafeZone() bool {
	return g.AlertOnExit
}
