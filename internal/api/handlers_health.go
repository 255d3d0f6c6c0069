// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthLive reports process liveness. It answers as long as the HTTP
// server is up, regardless of downstream state.
func (s *Server) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports whether the service can do useful work: database
// reachable and, when configured, the event stream healthy.
func (s *Server) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if s.stream != nil {
		if s.stream.IsHealthy(ctx) {
			checks["stream"] = "ok"
		} else {
			checks["stream"] = "unhealthy"
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	respondData(w, status, checks)
}
