// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package database

import (
	"strings"
	"testing"
	"time"
)

func TestSchemaStatementsAreIdempotent(t *testing.T) {
	for i, stmt := range schema {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("schema[%d] is not idempotent:\n%s", i, stmt)
		}
	}
}

func TestRefreshTokenValidity(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Hour)

	tests := []struct {
		name  string
		token RefreshToken
		want  bool
	}{
		{"live token", RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired token", RefreshToken{ExpiresAt: now.Add(-time.Minute)}, false},
		{"revoked token", RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Valid(now); got != tt.want {
				t.Errorf("Valid = %v, want %v", got, tt.want)
			}
		})
	}
}
