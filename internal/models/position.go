// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package models

import "time"

// Position is a single ingested location sample. Rows are immutable once
// written; SequenceID is assigned atomically by the storage layer at insert
// time and is the authoritative happened-before ordering for a user's
// position stream. ObservedAt is the device wall-clock timestamp and may be
// out of insertion order under concurrent ingestion, so it is never used to
// decide which sample came "before" another.
type Position struct {
	SequenceID int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Altitude   *float64  `json:"altitude,omitempty"`
	ObservedAt time.Time `json:"timestamp"`
}

// Coordinate bounds used by request validation.
const (
	LatitudeMin  = -90.0
	LatitudeMax  = 90.0
	LongitudeMin = -180.0
	LongitudeMax = 180.0
)

// Location history query limits, matching the dashboard defaults.
const (
	HistoryDefaultLimit = 1000
	HistoryMaxLimit     = 5000
)
