// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package config loads the tracker's configuration from three layered
// sources, later layers overriding earlier ones:
//
//  1. built-in defaults
//  2. an optional YAML config file
//  3. environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/auth"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/database"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/notify"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig    `koanf:"server"`
	Database database.Config `koanf:"database"`
	NATS     NATSConfig      `koanf:"nats"`
	Auth     auth.Config     `koanf:"auth"`
	Notify   NotifyConfig    `koanf:"notify"`
	Logging  LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP on the
	// general API. Login has its own, much tighter limit.
	RateLimitReqs    int           `koanf:"rate_limit_reqs"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	LoginLimitReqs   int           `koanf:"login_limit_reqs"`
	LoginLimitWindow time.Duration `koanf:"login_limit_window"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NATSConfig holds the message bus settings.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamName       string        `koanf:"stream_name"`
	StreamMaxAge     time.Duration `koanf:"stream_max_age"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`

	RouterRetryCount        int           `koanf:"router_retry_count"`
	RouterRetryInterval     time.Duration `koanf:"router_retry_interval"`
	RouterThrottlePerSecond int64         `koanf:"router_throttle_per_second"`
	RouterPoisonQueueTopic  string        `koanf:"router_poison_queue_topic"`
	RouterCloseTimeout      time.Duration `koanf:"router_close_timeout"`
}

// NotifyConfig holds the notification channel settings.
type NotifyConfig struct {
	Email          notify.EmailConfig `koanf:"email"`
	SMS            notify.SMSConfig   `koanf:"sms"`
	ChannelTimeout time.Duration      `koanf:"channel_timeout"`

	// RatePerMinute caps outbound notifications across all channels.
	// Zero disables the limiter.
	RatePerMinute int `koanf:"rate_per_minute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would make the
// service unusable at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required"))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	} else if len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret must be at least 32 characters"))
	}
	if c.Auth.AccessTokenTTL < 0 || c.Auth.RefreshTokenTTL < 0 {
		errs = append(errs, errors.New("auth token lifetimes must be positive"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q not supported", c.Logging.Format))
	}

	return errors.Join(errs...)
}
