// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"net/http"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// ListAlerts returns the caller's alerts newest first. Pass unread=true to
// filter to unread ones; limit caps the page size.
func (s *Server) ListAlerts(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	limit := getIntParam(r, "limit", models.AlertsDefaultLimit)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	alerts, err := s.alerts.ListForUser(r.Context(), claims.UserID, limit, unreadOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, alerts)
}

// AllAlerts returns alerts across every user, for the admin dashboard.
func (s *Server) AllAlerts(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", models.AlertsDefaultLimit)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	alerts, err := s.alerts.ListAll(r.Context(), limit, unreadOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, alerts)
}

// UnreadAlertCount returns the caller's unread alert count, for the badge.
func (s *Server) UnreadAlertCount(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	count, err := s.alerts.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"unread_count": count})
}

// MarkAlertRead flips one of the caller's alerts to read.
func (s *Server) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	id := pathID(r, "id")
	if id == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "alert not found", nil)
		return
	}
	if err := s.alerts.MarkRead(r.Context(), id, claims.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "alert marked read"})
}

// MarkAllAlertsRead flips every unread alert of the caller to read.
func (s *Server) MarkAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	updated, err := s.alerts.MarkAllRead(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int64{"updated": updated})
}

// DeleteAlert removes one of the caller's alerts.
func (s *Server) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	id := pathID(r, "id")
	if id == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "alert not found", nil)
		return
	}
	if err := s.alerts.Delete(r.Context(), id, claims.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "alert deleted"})
}
