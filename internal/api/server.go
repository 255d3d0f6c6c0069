// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package api provides the HTTP surface of the tracker: authentication,
// position ingestion, geofence management, the alert read side, and the
// websocket upgrade. Routing uses chi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/auth"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/database"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/middleware"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/websocket"
)

// UserStore is the account storage the API depends on.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}

// LocationStore is the position storage the API depends on.
type LocationStore interface {
	Insert(ctx context.Context, pos *models.Position) error
	History(ctx context.Context, userID int64, limit int, since, until *time.Time) ([]*models.Position, error)
	Latest(ctx context.Context, userID int64) (*models.Position, error)
	LatestPerUser(ctx context.Context) ([]*models.Position, error)
}

// GeofenceStore is the geofence and assignment storage the API depends on.
type GeofenceStore interface {
	Create(ctx context.Context, g *models.Geofence) error
	Update(ctx context.Context, g *models.Geofence) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*models.Geofence, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Geofence, error)
	Assign(ctx context.Context, a *models.Assignment) error
	Unassign(ctx context.Context, userID, geofenceID int64) error
	ActiveAssignedGeofences(ctx context.Context, userID int64) ([]models.AssignedGeofence, error)
}

// AlertStore is the alert read side the API depends on.
type AlertStore interface {
	ListForUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]*models.Alert, error)
	ListAll(ctx context.Context, limit int, unreadOnly bool) ([]*models.Alert, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, alertID, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, alertID, userID int64) error
}

// TokenStore persists refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	Find(ctx context.Context, tokenHash string) (*database.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

// LocationPublisher puts freshly ingested positions on the bus.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, topic string, event *events.LocationEvent) error
}

// AssignmentInvalidator drops cached assignment sets after an admin changes
// zones or assignments, so the evaluation path picks the change up on the
// next sample instead of waiting out the cache TTL.
type AssignmentInvalidator interface {
	Invalidate(userID int64)
	InvalidateAll()
}

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StreamChecker reports message bus liveness for the readiness probe.
type StreamChecker interface {
	IsHealthy(ctx context.Context) bool
}

// Config holds the HTTP-facing tunables.
type Config struct {
	CORSOrigins      []string
	RateLimitReqs    int
	RateLimitWindow  time.Duration
	LoginLimitReqs   int
	LoginLimitWindow time.Duration
}

// Server wires handlers to their dependencies.
type Server struct {
	cfg       Config
	tokens    *auth.Manager
	users     UserStore
	locations LocationStore
	geofences GeofenceStore
	alerts    AlertStore
	refresh   TokenStore
	publisher LocationPublisher
	hub       *websocket.Hub
	db        Pinger
	stream    StreamChecker

	invalidator AssignmentInvalidator
}

// SetAssignmentInvalidator registers the cache invalidation hook called by
// the geofence and assignment mutation handlers. Optional; without it,
// changes propagate when the cache TTL expires.
func (s *Server) SetAssignmentInvalidator(inv AssignmentInvalidator) {
	s.invalidator = inv
}

// invalidateAssignments drops cached assignments for one user, or for
// everyone when userID is zero (zone-level changes touch unknown users).
func (s *Server) invalidateAssignments(userID int64) {
	if s.invalidator == nil {
		return
	}
	if userID == 0 {
		s.invalidator.InvalidateAll()
		return
	}
	s.invalidator.Invalidate(userID)
}

// NewServer builds the API server. publisher, hub, db and stream may be nil;
// the corresponding features degrade instead of panicking.
func NewServer(cfg Config, tokens *auth.Manager, users UserStore, locations LocationStore,
	geofences GeofenceStore, alerts AlertStore, refresh TokenStore,
	publisher LocationPublisher, hub *websocket.Hub, db Pinger, stream StreamChecker,
) *Server {
	if cfg.RateLimitReqs <= 0 {
		cfg.RateLimitReqs = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = 15 * time.Minute
	}
	if cfg.LoginLimitReqs <= 0 {
		cfg.LoginLimitReqs = 5
	}
	if cfg.LoginLimitWindow <= 0 {
		cfg.LoginLimitWindow = 15 * time.Minute
	}
	return &Server{
		cfg:       cfg,
		tokens:    tokens,
		users:     users,
		locations: locations,
		geofences: geofences,
		alerts:    alerts,
		refresh:   refresh,
		publisher: publisher,
		hub:       hub,
		db:        db,
		stream:    stream,
	}
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", s.HealthLive)
		r.Get("/ready", s.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))

		// Login gets the strictest limit to slow brute forcing.
		r.With(httprate.LimitByIP(s.cfg.LoginLimitReqs, s.cfg.LoginLimitWindow)).
			Post("/login", s.Login)
		r.Post("/register", s.Register)
		r.Post("/refresh", s.Refresh)
		r.With(s.Authenticate).Post("/logout", s.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(s.Authenticate)

		r.Get("/me", s.Me)

		r.Route("/locations", func(r chi.Router) {
			r.Post("/", s.IngestLocation)
			r.Get("/history", s.LocationHistory)
			r.Get("/latest", s.LatestLocation)
			r.With(s.RequireAdmin).Get("/all", s.AllLatestLocations)
		})

		r.Route("/geofences", func(r chi.Router) {
			r.Get("/", s.ListGeofences)
			r.Get("/assigned", s.AssignedGeofences)
			r.Get("/{id}", s.GetGeofence)

			r.Group(func(r chi.Router) {
				r.Use(s.RequireAdmin)
				r.Post("/", s.CreateGeofence)
				r.Put("/{id}", s.UpdateGeofence)
				r.Delete("/{id}", s.DeleteGeofence)
				r.Post("/{id}/assign", s.AssignGeofence)
				r.Delete("/{id}/assign/{userID}", s.UnassignGeofence)
			})
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.ListAlerts)
			r.With(s.RequireAdmin).Get("/all", s.AllAlerts)
			r.Get("/unread-count", s.UnreadAlertCount)
			r.Put("/{id}/read", s.MarkAlertRead)
			r.Put("/read-all", s.MarkAllAlertsRead)
			r.Delete("/{id}", s.DeleteAlert)
		})

		r.With(s.RequireAdmin).Get("/users", s.ListUsers)

		r.Get("/ws", s.WebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
