// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"net/http"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

type geofenceRequest struct {
	Name            string  `json:"name" validate:"required,max=128"`
	Description     string  `json:"description" validate:"max=512"`
	CenterLatitude  float64 `json:"center_latitude" validate:"latitude"`
	CenterLongitude float64 `json:"center_longitude" validate:"longitude"`
	RadiusMeters    float64 `json:"radius_meters" validate:"geofence_radius"`
	IsActive        *bool   `json:"is_active"`
}

type assignRequest struct {
	UserID       int64 `json:"user_id" validate:"required,gt=0"`
	AlertOnEntry bool  `json:"alert_on_entry"`
	AlertOnExit  bool  `json:"alert_on_exit"`
}

// CreateGeofence creates a circular zone, admin only.
func (s *Server) CreateGeofence(w http.ResponseWriter, r *http.Request) {
	var req geofenceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims := ClaimsFromContext(r.Context())
	g := &models.Geofence{
		Name:            req.Name,
		Description:     req.Description,
		CenterLatitude:  req.CenterLatitude,
		CenterLongitude: req.CenterLongitude,
		RadiusMeters:    req.RadiusMeters,
		IsActive:        req.IsActive == nil || *req.IsActive,
		CreatedBy:       claims.UserID,
	}
	if err := s.geofences.Create(r.Context(), g); err != nil {
		respondStoreError(w, err)
		return
	}

	logging.Info().Int64("geofence_id", g.ID).Str("name", g.Name).Msg("geofence created")
	respondData(w, http.StatusCreated, g)
}

// UpdateGeofence rewrites a zone's definition, admin only.
func (s *Server) UpdateGeofence(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if id == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "geofence not found", nil)
		return
	}

	var req geofenceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g := &models.Geofence{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		CenterLatitude:  req.CenterLatitude,
		CenterLongitude: req.CenterLongitude,
		RadiusMeters:    req.RadiusMeters,
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	if err := s.geofences.Update(r.Context(), g); err != nil {
		respondStoreError(w, err)
		return
	}

	s.invalidateAssignments(0)
	respondData(w, http.StatusOK, g)
}

// DeleteGeofence removes a zone and its assignments, admin only.
func (s *Server) DeleteGeofence(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if id == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "geofence not found", nil)
		return
	}
	if err := s.geofences.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	s.invalidateAssignments(0)
	logging.Info().Int64("geofence_id", id).Msg("geofence deleted")
	respondData(w, http.StatusOK, map[string]string{"message": "geofence deleted"})
}

// GetGeofence fetches one zone.
func (s *Server) GetGeofence(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if id == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "geofence not found", nil)
		return
	}
	g, err := s.geofences.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, g)
}

// ListGeofences returns all zones; pass active=true to filter.
func (s *Server) ListGeofences(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	geofences, err := s.geofences.List(r.Context(), activeOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, geofences)
}

// AssignedGeofences returns the caller's active zones with their edge
// flags. Admins may query any user via the user_id parameter.
func (s *Server) AssignedGeofences(w http.ResponseWriter, r *http.Request) {
	userID := s.targetUserID(r)
	if userID == 0 {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "cannot view another user's assignments", nil)
		return
	}

	zones, err := s.geofences.ActiveAssignedGeofences(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, zones)
}

// AssignGeofence links a user to a zone with per-edge alert flags, admin
// only. Re-assigning updates the flags in place.
func (s *Server) AssignGeofence(w http.ResponseWriter, r *http.Request) {
	geofenceID := pathID(r, "id")
	if geofenceID == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "geofence not found", nil)
		return
	}

	var req assignRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// The zone must exist; the FK would catch it, but a clean 404 beats a
	// constraint violation.
	if _, err := s.geofences.Get(r.Context(), geofenceID); err != nil {
		respondStoreError(w, err)
		return
	}

	a := &models.Assignment{
		UserID:       req.UserID,
		GeofenceID:   geofenceID,
		AlertOnEntry: req.AlertOnEntry,
		AlertOnExit:  req.AlertOnExit,
	}
	if err := s.geofences.Assign(r.Context(), a); err != nil {
		respondStoreError(w, err)
		return
	}

	s.invalidateAssignments(a.UserID)
	logging.Info().
		Int64("user_id", a.UserID).
		Int64("geofence_id", a.GeofenceID).
		Bool("alert_on_entry", a.AlertOnEntry).
		Bool("alert_on_exit", a.AlertOnExit).
		Msg("geofence assigned")
	respondData(w, http.StatusCreated, a)
}

// UnassignGeofence removes a user's link to a zone, admin only.
func (s *Server) UnassignGeofence(w http.ResponseWriter, r *http.Request) {
	geofenceID := pathID(r, "id")
	userID := pathID(r, "userID")
	if geofenceID == 0 || userID == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "assignment not found", nil)
		return
	}

	if err := s.geofences.Unassign(r.Context(), userID, geofenceID); err != nil {
		respondStoreError(w, err)
		return
	}

	s.invalidateAssignments(userID)
	respondData(w, http.StatusOK, map[string]string{"message": "assignment removed"})
}
