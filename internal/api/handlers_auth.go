// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/auth"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/database"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FullName    string `json:"full_name" validate:"max=128"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse is the payload of every successful auth operation.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

// Register creates a new account. Accounts always start with the user
// role; admins are promoted out of band.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		PhoneNumber:  req.PhoneNumber,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		respondStoreError(w, err)
		return
	}

	logging.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("account registered")
	respondData(w, http.StatusCreated, user)
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}
	if !user.IsActive {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
		return
	}

	resp, err := s.issueTokens(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}

	logging.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("login")
	respondData(w, http.StatusOK, resp)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued, so a stolen token works at most once.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := s.refresh.Find(r.Context(), auth.HashToken(req.RefreshToken))
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "refresh token not recognized", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}
	if !record.Valid(time.Now()) {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "refresh token expired or revoked", nil)
		return
	}

	user, err := s.users.GetUser(r.Context(), record.UserID)
	if err != nil || !user.IsActive {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "account unavailable", nil)
		return
	}

	if err := s.refresh.Revoke(r.Context(), record.TokenHash); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}

	resp, err := s.issueTokens(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}
	respondData(w, http.StatusOK, resp)
}

// Logout revokes the presented refresh token, or every token of the
// caller when none is given.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req logoutRequest
	if r.ContentLength > 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	var err error
	if req.RefreshToken != "" {
		err = s.refresh.Revoke(r.Context(), auth.HashToken(req.RefreshToken))
	} else {
		err = s.refresh.RevokeAllForUser(r.Context(), claims.UserID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		return
	}

	logging.Info().Int64("user_id", claims.UserID).Msg("logout")
	respondData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated account.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	user, err := s.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

// ListUsers returns every active account, admin only.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, users)
}

func (s *Server) issueTokens(r *http.Request, user *models.User) (*tokenResponse, error) {
	accessToken, expiresAt, err := s.tokens.NewAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExpiry := time.Now().Add(s.tokens.RefreshTokenTTL())
	if err := s.refresh.Save(r.Context(), user.ID, refreshHash, refreshExpiry); err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken:  accessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
