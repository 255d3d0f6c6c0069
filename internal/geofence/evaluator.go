// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package geofence

import (
	"github.com/KOBRA-1337/Tracking-Device-system/internal/geo"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// IsInside reports whether the coordinate lies within the geofence circle.
// The boundary is inclusive: a point exactly RadiusMeters from the center
// counts as inside.
func IsInside(lat, lon float64, g *models.Geofence) bool {
	return geo.DistanceMeters(lat, lon, g.CenterLatitude, g.CenterLongitude) <= g.RadiusMeters
}

// IsOutOfZone computes the level-triggered aggregate status for a position:
// true when the user is outside every assigned safe zone. Only safe-zone
// assignments participate; with no safe zones the status is always false,
// so "out of zone" can never fire for a user nobody configured exit alerts
// for.
func IsOutOfZone(pos *models.Position, zones []models.AssignedGeofence) bool {
	sawSafeZone := false
	for i := range zones {
		if !zones[i].IsSafeZone() {
			continue
		}
		sawSafeZone = true
		if IsInside(pos.Latitude, pos.Longitude, &zones[i].Geofence) {
			return false
		}
	}
	return sawSafeZone
}
