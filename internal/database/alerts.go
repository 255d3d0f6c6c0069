// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// AlertStore persists alerts. The dispatcher appends; the read side flips
// is_read or deletes.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates an alert store over the shared pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// AppendAlert inserts the alert and fills its ID and CreatedAt.
func (s *AlertStore) AppendAlert(ctx context.Context, alert *models.Alert) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alerts (user_id, geofence_id, alert_type, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		alert.UserID, alert.GeofenceID, alert.Kind, alert.Message,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecordDispatchOutcome marks the notify stage as run and stores the
// per-channel outcome record.
func (s *AlertStore) RecordDispatchOutcome(ctx context.Context, alertID int64, outcomes []models.ChannelOutcome) error {
	encoded, err := models.EncodeChannelOutcomes(outcomes)
	if err != nil {
		return fmt.Errorf("encode channel outcomes: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE alerts SET notification_sent = TRUE, channel_outcomes = $2
		WHERE id = $1`, alertID, encoded)
	if err != nil {
		return fmt.Errorf("record dispatch outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const alertColumns = `id, user_id, geofence_id, alert_type, message, is_read, notification_sent, channel_outcomes, created_at`

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	err := row.Scan(&a.ID, &a.UserID, &a.GeofenceID, &a.Kind, &a.Message,
		&a.IsRead, &a.NotificationDispatched, &a.ChannelOutcomes, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	return &a, nil
}

// ListForUser returns a user's alerts newest first.
func (s *AlertStore) ListForUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = models.AlertsDefaultLimit
	}
	if limit > models.AlertsMaxLimit {
		limit = models.AlertsMaxLimit
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ListAll returns alerts across every user newest first, for the admin
// dashboard.
func (s *AlertStore) ListAll(ctx context.Context, limit int, unreadOnly bool) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = models.AlertsDefaultLimit
	}
	if limit > models.AlertsMaxLimit {
		limit = models.AlertsMaxLimit
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if unreadOnly {
		query += ` WHERE NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list all alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UnreadCount returns the number of unread alerts for a user.
func (s *AlertStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM alerts WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return count, nil
}

// MarkRead flips one alert to read. The user id scopes the update so users
// cannot mark each other's alerts.
func (s *AlertStore) MarkRead(ctx context.Context, alertID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_read = TRUE WHERE id = $1 AND user_id = $2`, alertID, userID)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips every unread alert of a user to read.
func (s *AlertStore) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes one alert, scoped to its owner.
func (s *AlertStore) Delete(ctx context.Context, alertID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE id = $1 AND user_id = $2`, alertID, userID)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
