// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// LocationStore persists position samples. Rows are append-only; the
// BIGSERIAL id doubles as the sequence id that orders a user's stream.
type LocationStore struct {
	pool *pgxpool.Pool
}

// NewLocationStore creates a location store over the shared pool.
func NewLocationStore(pool *pgxpool.Pool) *LocationStore {
	return &LocationStore{pool: pool}
}

// Insert durably stores one sample and fills its SequenceID. The sequence id
// is assigned by the database inside the insert, so concurrent ingestion for
// the same user cannot race on ordering.
func (s *LocationStore) Insert(ctx context.Context, pos *models.Position) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations (user_id, latitude, longitude, accuracy, speed, heading, altitude, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		pos.UserID, pos.Latitude, pos.Longitude, pos.Accuracy, pos.Speed, pos.Heading, pos.Altitude, pos.ObservedAt,
	).Scan(&pos.SequenceID)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

const locationColumns = `id, user_id, latitude, longitude, accuracy, speed, heading, altitude, recorded_at`

func scanPosition(row pgx.Row) (*models.Position, error) {
	var p models.Position
	err := row.Scan(&p.SequenceID, &p.UserID, &p.Latitude, &p.Longitude,
		&p.Accuracy, &p.Speed, &p.Heading, &p.Altitude, &p.ObservedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan location: %w", err)
	}
	return &p, nil
}

// PreviousPosition returns the user's most recent sample with a sequence id
// strictly below beforeSeq, or (nil, nil) when none exists. Ordering is by
// sequence id, never by the device timestamp.
func (s *LocationStore) PreviousPosition(ctx context.Context, userID, beforeSeq int64) (*models.Position, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE user_id = $1 AND id < $2
		ORDER BY id DESC
		LIMIT 1`, userID, beforeSeq)

	pos, err := scanPosition(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return pos, err
}

// History returns a user's samples newest first, optionally bounded to a
// time window on the device timestamp.
func (s *LocationStore) History(ctx context.Context, userID int64, limit int, since, until *time.Time) ([]*models.Position, error) {
	if limit <= 0 {
		limit = models.HistoryDefaultLimit
	}
	if limit > models.HistoryMaxLimit {
		limit = models.HistoryMaxLimit
	}

	query := `SELECT ` + locationColumns + ` FROM locations WHERE user_id = $1`
	args := []interface{}{userID}
	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(` AND recorded_at >= $%d`, len(args))
	}
	if until != nil {
		args = append(args, *until)
		query += fmt.Sprintf(` AND recorded_at <= $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query location history: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Latest returns a user's most recent sample.
func (s *LocationStore) Latest(ctx context.Context, userID int64) (*models.Position, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT 1`, userID)
	return scanPosition(row)
}

// LatestPerUser returns the newest sample of every user that has one, for
// the admin live map.
func (s *LocationStore) LatestPerUser(ctx context.Context) ([]*models.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (user_id) `+locationColumns+` FROM locations
		ORDER BY user_id, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query latest locations: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
