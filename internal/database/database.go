// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package database implements PostgreSQL persistence over pgx. Each store
// wraps the shared connection pool; the schema is applied idempotently at
// startup.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("not found")

// Config holds connection pool settings.
type Config struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	MinConns       int32         `koanf:"min_conns"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// Database owns the pgx connection pool.
type Database struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, cfg Config) (*Database, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Msg("Database connected")

	return &Database{pool: pool}, nil
}

// Pool exposes the underlying pool for the stores.
func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

// Ping verifies the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Close releases the connection pool.
func (d *Database) Close() {
	d.pool.Close()
}

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL DEFAULT '',
		phone_number  TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'user',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// locations.id is the authoritative ordering of a user's position
	// stream; the recorded device timestamp is display-only.
	`CREATE TABLE IF NOT EXISTS locations (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		latitude   DOUBLE PRECISION NOT NULL,
		longitude  DOUBLE PRECISION NOT NULL,
		accuracy   DOUBLE PRECISION,
		speed      DOUBLE PRECISION,
		heading    DOUBLE PRECISION,
		altitude   DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_user_seq ON locations (user_id, id DESC)`,

	`CREATE TABLE IF NOT EXISTS geofences (
		id               BIGSERIAL PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		center_latitude  DOUBLE PRECISION NOT NULL,
		center_longitude DOUBLE PRECISION NOT NULL,
		radius_meters    DOUBLE PRECISION NOT NULL,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_by       BIGINT REFERENCES users(id) ON DELETE SET NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS user_geofences (
		user_id        BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		geofence_id    BIGINT NOT NULL REFERENCES geofences(id) ON DELETE CASCADE,
		alert_on_entry BOOLEAN NOT NULL DEFAULT TRUE,
		alert_on_exit  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, geofence_id)
	)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		geofence_id       BIGINT NOT NULL REFERENCES geofences(id) ON DELETE CASCADE,
		alert_type        TEXT NOT NULL,
		message           TEXT NOT NULL DEFAULT '',
		is_read           BOOLEAN NOT NULL DEFAULT FALSE,
		notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
		channel_outcomes  JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON alerts (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (d *Database) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logging.Info().Msg("Database schema applied")
	return nil
}
