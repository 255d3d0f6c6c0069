// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/websocket"
)

// HubService runs the websocket hub.
type HubService struct {
	Hub *websocket.Hub
}

func (s *HubService) Serve(ctx context.Context) error {
	return s.Hub.Run(ctx)
}

func (s *HubService) String() string { return "websocket-hub" }

// RouterService runs the Watermill event router.
type RouterService struct {
	Router *events.Router
}

func (s *RouterService) Serve(ctx context.Context) error {
	err := s.Router.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return err
}

func (s *RouterService) String() string { return "event-router" }

// BridgeService runs the bus-to-websocket bridge.
type BridgeService struct {
	Bridge *websocket.Bridge
}

func (s *BridgeService) Serve(ctx context.Context) error {
	if err := s.Bridge.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Bridge.Stop()
	return ctx.Err()
}

func (s *BridgeService) String() string { return "websocket-bridge" }

// HTTPService runs the API server with graceful shutdown.
type HTTPService struct {
	Server          *http.Server
	ShutdownTimeout time.Duration
}

func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	<-errCh
	return ctx.Err()
}

func (s *HTTPService) String() string { return "http-server" }

// TokenPruner periodically deletes expired refresh tokens.
type TokenPruner struct {
	Store interface {
		DeleteExpired(ctx context.Context) (int64, error)
	}
	Interval time.Duration
}

func (s *TokenPruner) Serve(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deleted, err := s.Store.DeleteExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("refresh token pruning failed")
				continue
			}
			if deleted > 0 {
				logging.Debug().Int64("deleted", deleted).Msg("pruned expired refresh tokens")
			}
		}
	}
}

func (s *TokenPruner) String() string { return "token-pruner" }
