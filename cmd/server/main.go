// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package main is the entry point for the tracking server.
//
// The server boots in this order: configuration, logging, PostgreSQL,
// the (optionally embedded) NATS JetStream server, the event pipeline,
// the websocket hub, and finally the HTTP API. Long-lived components run
// under a suture supervision tree and shut down gracefully on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/time/rate"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/api"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/auth"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/config"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/database"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/notify"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/supervisor"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logging.Info().Msg("database ready")

	natsURL := cfg.NATS.URL
	var embedded *events.EmbeddedServer
	if cfg.NATS.EmbeddedServer {
		embedded, err = events.NewEmbeddedServer(events.EmbeddedServerConfig{
			Host:      "127.0.0.1",
			Port:      -1,
			StoreDir:  cfg.NATS.StoreDir,
			MaxMemory: cfg.NATS.MaxMemory,
			MaxStore:  cfg.NATS.MaxStore,
		})
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		natsURL = embedded.ClientURL()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("embedded NATS shutdown incomplete")
			}
		}()
		logging.Info().Str("url", natsURL).Msg("embedded NATS server started")
	}

	streamInit, err := ensureStream(ctx, cfg, natsURL)
	if err != nil {
		return err
	}

	wmLogger := events.WatermillLogger()

	publisher, err := events.NewPublisher(events.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer publisher.Close()

	subCfg := events.DefaultSubscriberConfig(natsURL)
	subCfg.QueueGroup = cfg.NATS.QueueGroup
	subCfg.DurableName = cfg.NATS.DurableName
	subCfg.StreamName = cfg.NATS.StreamName
	subCfg.SubscribersCount = cfg.NATS.SubscribersCount
	subscriber, err := events.NewSubscriber(subCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer subscriber.Close()

	routerCfg := events.DefaultRouterConfig()
	routerCfg.RetryMaxRetries = cfg.NATS.RouterRetryCount
	routerCfg.RetryInitialInterval = cfg.NATS.RouterRetryInterval
	routerCfg.ThrottlePerSecond = cfg.NATS.RouterThrottlePerSecond
	routerCfg.PoisonQueueTopic = cfg.NATS.RouterPoisonQueueTopic
	routerCfg.CloseTimeout = cfg.NATS.RouterCloseTimeout
	router, err := events.NewRouter(routerCfg, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	pool := db.Pool()
	userStore := database.NewUserStore(pool)
	locationStore := database.NewLocationStore(pool)
	geofenceStore := database.NewGeofenceStore(pool)
	alertStore := database.NewAlertStore(pool)
	tokenStore := database.NewTokenStore(pool)

	notifier := buildNotifier(cfg)
	assignments := geofence.NewCachedAssignments(geofenceStore, 0, 0)
	engine := geofence.NewEngine(assignments, locationStore)
	dispatcher := geofence.NewDispatcher(alertStore, userStore,
		events.NewAlertPublisher(publisher), notifier)

	pipeline := events.NewPipeline(engine, dispatcher, userStore, publisher)
	pipeline.Register(router, subscriber.WatermillSubscriber())

	hub := websocket.NewHub()
	bridge := websocket.NewBridge(hub, subscriber)

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return fmt.Errorf("create token manager: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimitReqs:    cfg.Server.RateLimitReqs,
		RateLimitWindow:  cfg.Server.RateLimitWindow,
		LoginLimitReqs:   cfg.Server.LoginLimitReqs,
		LoginLimitWindow: cfg.Server.LoginLimitWindow,
	}, tokens, userStore, locationStore, geofenceStore, alertStore, tokenStore,
		publisher, hub, db, streamInit)
	apiServer.SetAssignmentInvalidator(assignments)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.DefaultTreeConfig())
	tree.AddDataService(&supervisor.TokenPruner{Store: tokenStore, Interval: time.Hour})
	tree.AddMessagingService(&supervisor.HubService{Hub: hub})
	tree.AddMessagingService(&supervisor.RouterService{Router: router})
	tree.AddMessagingService(&supervisor.BridgeService{Bridge: bridge})
	tree.AddAPIService(&supervisor.HTTPService{
		Server:          httpServer,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("tracking server starting")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("tracking server stopped")
	return nil
}

// ensureStream connects to JetStream and creates or updates the pipeline
// stream before any publisher or subscriber binds to it.
func ensureStream(ctx context.Context, cfg *config.Config, natsURL string) (*events.StreamInitializer, error) {
	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := events.DefaultStreamConfig()
	if cfg.NATS.StreamName != "" {
		streamCfg.Name = cfg.NATS.StreamName
	}
	if cfg.NATS.StreamMaxAge > 0 {
		streamCfg.MaxAge = cfg.NATS.StreamMaxAge
	}

	streamInit, err := events.NewStreamInitializer(js, streamCfg)
	if err != nil {
		return nil, err
	}
	if _, err := streamInit.EnsureStream(ctx); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	logging.Info().Str("stream", streamCfg.Name).Msg("event stream ready")
	return streamInit, nil
}

// buildNotifier assembles the notification channels in delivery order.
func buildNotifier(cfg *config.Config) *notify.Manager {
	channels := []notify.Channel{
		notify.NewEmailChannel(cfg.Notify.Email),
		notify.NewSMSChannel(cfg.Notify.SMS),
	}

	var limiter *rate.Limiter
	if cfg.Notify.RatePerMinute > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(float64(cfg.Notify.RatePerMinute)/60.0),
			cfg.Notify.RatePerMinute)
	}

	return notify.NewManager(channels, cfg.Notify.ChannelTimeout, limiter)
}
