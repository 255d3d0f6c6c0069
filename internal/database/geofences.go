// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// GeofenceStore persists geofences and their user assignments.
type GeofenceStore struct {
	pool *pgxpool.Pool
}

// NewGeofenceStore creates a geofence store over the shared pool.
func NewGeofenceStore(pool *pgxpool.Pool) *GeofenceStore {
	return &GeofenceStore{pool: pool}
}

const geofenceColumns = `id, name, description, center_latitude, center_longitude, radius_meters, is_active, created_by, created_at`

func scanGeofence(row pgx.Row) (*models.Geofence, error) {
	var g models.Geofence
	var createdBy sql.NullInt64
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CenterLatitude, &g.CenterLongitude,
		&g.RadiusMeters, &g.IsActive, &createdBy, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan geofence: %w", err)
	}
	if createdBy.Valid {
		g.CreatedBy = createdBy.Int64
	}
	return &g, nil
}

// Create inserts a geofence and fills its ID and CreatedAt.
func (s *GeofenceStore) Create(ctx context.Context, g *models.Geofence) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO geofences (name, description, center_latitude, center_longitude, radius_meters, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0))
		RETURNING id, created_at`,
		g.Name, g.Description, g.CenterLatitude, g.CenterLongitude, g.RadiusMeters, g.IsActive, g.CreatedBy,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert geofence: %w", err)
	}
	return nil
}

// Update rewrites a geofence's mutable fields.
func (s *GeofenceStore) Update(ctx context.Context, g *models.Geofence) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE geofences
		SET name = $2, description = $3, center_latitude = $4, center_longitude = $5,
		    radius_meters = $6, is_active = $7
		WHERE id = $1`,
		g.ID, g.Name, g.Description, g.CenterLatitude, g.CenterLongitude, g.RadiusMeters, g.IsActive)
	if err != nil {
		return fmt.Errorf("update geofence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a geofence; assignments and alerts cascade.
func (s *GeofenceStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM geofences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete geofence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one geofence.
func (s *GeofenceStore) Get(ctx context.Context, id int64) (*models.Geofence, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, id)
	return scanGeofence(row)
}

// List returns geofences, optionally only active ones.
func (s *GeofenceStore) List(ctx context.Context, activeOnly bool) ([]*models.Geofence, error) {
	query := `SELECT ` + geofenceColumns + ` FROM geofences`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}
	defer rows.Close()

	var geofences []*models.Geofence
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, err
		}
		geofences = append(geofences, g)
	}
	return geofences, rows.Err()
}

// Assign creates or updates the assignment for a (user, geofence) pair.
// Re-assigning overwrites the edge flags; there is never more than one row
// per pair.
func (s *GeofenceStore) Assign(ctx context.Context, a *models.Assignment) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_geofences (user_id, geofence_id, alert_on_entry, alert_on_exit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, geofence_id)
		DO UPDATE SET alert_on_entry = EXCLUDED.alert_on_entry, alert_on_exit = EXCLUDED.alert_on_exit
		RETURNING created_at`,
		a.UserID, a.GeofenceID, a.AlertOnEntry, a.AlertOnExit,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}
	return nil
}

// Unassign removes the assignment for a (user, geofence) pair.
func (s *GeofenceStore) Unassign(ctx context.Context, userID, geofenceID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_geofences WHERE user_id = $1 AND geofence_id = $2`, userID, geofenceID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveAssignedGeofences returns the active geofences assigned to a user
// joined with the assignment edge flags. This is the transition engine's
// zone lookup.
func (s *GeofenceStore) ActiveAssignedGeofences(ctx context.Context, userID int64) ([]models.AssignedGeofence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.description, g.center_latitude, g.center_longitude,
		       g.radius_meters, g.is_active, g.created_at,
		       ug.alert_on_entry, ug.alert_on_exit
		FROM user_geofences ug
		JOIN geofences g ON g.id = ug.geofence_id
		WHERE ug.user_id = $1 AND g.is_active
		ORDER BY g.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query assigned geofences: %w", err)
	}
	defer rows.Close()

	var zones []models.AssignedGeofence
	for rows.Next() {
		var z models.AssignedGeofence
		if err := rows.Scan(&z.ID, &z.Name, &z.Description, &z.CenterLatitude, &z.CenterLongitude,
			&z.RadiusMeters, &z.IsActive, &z.CreatedAt,
			&z.AlertOnEntry, &z.AlertOnExit); err != nil {
			return nil, fmt.Errorf("scan assigned geofence: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
