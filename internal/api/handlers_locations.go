// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"net/http"
	"time"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

type ingestLocationRequest struct {
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	Accuracy  *float64  `json:"accuracy" validate:"omitempty,gte=0"`
	Speed     *float64  `json:"speed" validate:"omitempty,gte=0"`
	Heading   *float64  `json:"heading" validate:"omitempty,gte=0,lt=360"`
	Altitude  *float64  `json:"altitude"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestLocation stores one position sample for the caller and puts it on
// the bus for geofence evaluation. The sample is durable once this returns
// 201; a bus outage delays evaluation but never loses the sample.
func (s *Server) IngestLocation(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req ingestLocationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	pos := &models.Position{
		UserID:     claims.UserID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Accuracy:   req.Accuracy,
		Speed:      req.Speed,
		Heading:    req.Heading,
		Altitude:   req.Altitude,
		ObservedAt: req.Timestamp,
	}
	if err := s.locations.Insert(r.Context(), pos); err != nil {
		respondStoreError(w, err)
		return
	}
	metrics.RecordPositionIngested()

	if s.publisher != nil {
		event := events.NewLocationEvent(pos)
		if err := s.publisher.PublishLocation(r.Context(), events.TopicLocationUpdated, event); err != nil {
			logging.Error().Err(err).
				Int64("user_id", pos.UserID).
				Int64("sequence_id", pos.SequenceID).
				Msg("failed to publish ingested position")
		}
	}

	respondData(w, http.StatusCreated, pos)
}

// LocationHistory returns the caller's samples newest first. Admins may
// query any user via the user_id parameter.
func (s *Server) LocationHistory(w http.ResponseWriter, r *http.Request) {
	userID := s.targetUserID(r)
	if userID == 0 {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "cannot view another user's history", nil)
		return
	}

	limit := getIntParam(r, "limit", models.HistoryDefaultLimit)
	since := getTimeParam(r, "since")
	until := getTimeParam(r, "until")

	positions, err := s.locations.History(r.Context(), userID, limit, since, until)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, positions)
}

// LatestLocation returns the caller's newest sample. Admins may query any
// user via the user_id parameter.
func (s *Server) LatestLocation(w http.ResponseWriter, r *http.Request) {
	userID := s.targetUserID(r)
	if userID == 0 {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "cannot view another user's location", nil)
		return
	}

	pos, err := s.locations.Latest(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, pos)
}

// AllLatestLocations returns the newest sample of every user, admin only.
func (s *Server) AllLatestLocations(w http.ResponseWriter, r *http.Request) {
	positions, err := s.locations.LatestPerUser(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, positions)
}

// targetUserID resolves which user a read refers to: the caller itself, or
// for admins the optional user_id query parameter. Returns 0 when a
// non-admin asks for someone else's data.
func (s *Server) targetUserID(r *http.Request) int64 {
	claims := ClaimsFromContext(r.Context())
	requested := int64(getIntParam(r, "user_id", 0))
	if requested == 0 || requested == claims.UserID {
		return claims.UserID
	}
	if claims.Role == models.RoleAdmin {
		return requested
	}
	return 0
}
