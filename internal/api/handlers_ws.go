// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/websocket"
)

// WebSocket upgrades the connection and attaches the caller to the hub.
// Browsers cannot set the Authorization header on websocket requests, so
// Authenticate also accepts the access_token query parameter here.
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "live updates not available", nil)
		return
	}
	claims := ClaimsFromContext(r.Context())

	upgrader := gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Int64("user_id", claims.UserID).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(s.hub, conn, claims.UserID, claims.Role == models.RoleAdmin)
	client.Start()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
