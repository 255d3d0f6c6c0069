// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package geofence

import (
	"context"
	"time"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/cache"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// DefaultAssignmentCacheTTL bounds how long the evaluation path may see a
// stale assignment set after an admin changes zones or assignments.
const DefaultAssignmentCacheTTL = 30 * time.Second

// CachedAssignments wraps an AssignmentStore with a per-user LRU so that a
// burst of location samples from the same user hits the database once per
// TTL window instead of once per sample.
type CachedAssignments struct {
	inner AssignmentStore
	lru   *cache.LRU[int64, []models.AssignedGeofence]
}

// NewCachedAssignments caches up to capacity users' assignment sets for
// ttl. Zero values select sensible defaults.
func NewCachedAssignments(inner AssignmentStore, capacity int, ttl time.Duration) *CachedAssignments {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = DefaultAssignmentCacheTTL
	}
	return &CachedAssignments{
		inner: inner,
		lru:   cache.NewLRU[int64, []models.AssignedGeofence](capacity, ttl),
	}
}

// ActiveAssignedGeofences returns the cached assignment set for userID,
// falling through to the wrapped store on miss. Store errors are never
// cached.
func (c *CachedAssignments) ActiveAssignedGeofences(ctx context.Context, userID int64) ([]models.AssignedGeofence, error) {
	if zones, ok := c.lru.Get(userID); ok {
		return zones, nil
	}

	zones, err := c.inner.ActiveAssignedGeofences(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.lru.Set(userID, zones)
	return zones, nil
}

// Invalidate drops the cached set for one user, forcing the next
// evaluation to reload from the store.
func (c *CachedAssignments) Invalidate(userID int64) {
	c.lru.Delete(userID)
}

// InvalidateAll drops every cached set. Called after zone-level changes
// that may affect many users at once.
func (c *CachedAssignments) InvalidateAll() {
	c.lru.Purge()
}
