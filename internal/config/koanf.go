// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/auth"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/database"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/notify"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tracking/config.yaml",
	"/etc/tracking/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, the lowest-priority layer.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			CORSOrigins:      []string{"*"},
			RateLimitReqs:    100,
			RateLimitWindow:  15 * time.Minute,
			LoginLimitReqs:   5,
			LoginLimitWindow: 15 * time.Minute,
		},
		Database: database.Config{
			URL:            "",
			MaxConns:       10,
			MinConns:       2,
			ConnectTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URL:                     "nats://127.0.0.1:4222",
			EmbeddedServer:          true,
			StoreDir:                "/data/nats/jetstream",
			MaxMemory:               1 << 30,
			MaxStore:                10 << 30,
			StreamName:              events.DefaultStreamName,
			StreamMaxAge:            24 * time.Hour,
			DurableName:             "tracking",
			QueueGroup:              "tracking",
			SubscribersCount:        1,
			RouterRetryCount:        5,
			RouterRetryInterval:     time.Second,
			RouterThrottlePerSecond: 0,
			RouterPoisonQueueTopic:  events.TopicDeadLetter,
			RouterCloseTimeout:      30 * time.Second,
		},
		Auth: auth.Config{
			Secret:          "",
			Issuer:          "tracking",
			AccessTokenTTL:  auth.DefaultAccessTokenTTL,
			RefreshTokenTTL: auth.DefaultRefreshTokenTTL,
		},
		Notify: NotifyConfig{
			Email: notify.EmailConfig{
				Host: "",
				Port: 587,
				From: "",
			},
			SMS:            notify.SMSConfig{Enabled: false},
			ChannelTimeout: notify.DefaultChannelTimeout,
			RatePerMinute:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, validates it and returns the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the paths whose env values arrive as comma-separated
// strings but unmarshal into slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			if err := k.Set(path, parts); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables are dropped so unrelated environment noise never
// reaches the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":          "server.host",
		"http_port":          "server.port",
		"http_read_timeout":  "server.read_timeout",
		"http_write_timeout": "server.write_timeout",
		"shutdown_timeout":   "server.shutdown_timeout",
		"cors_origins":       "server.cors_origins",
		"rate_limit_reqs":    "server.rate_limit_reqs",
		"rate_limit_window":  "server.rate_limit_window",
		"login_limit_reqs":   "server.login_limit_reqs",
		"login_limit_window": "server.login_limit_window",

		// Database
		"database_url":       "database.url",
		"db_max_conns":       "database.max_conns",
		"db_min_conns":       "database.min_conns",
		"db_connect_timeout": "database.connect_timeout",

		// NATS
		"nats_url":                   "nats.url",
		"nats_embedded":              "nats.embedded_server",
		"nats_store_dir":             "nats.store_dir",
		"nats_max_memory":            "nats.max_memory",
		"nats_max_store":             "nats.max_store",
		"nats_stream_name":           "nats.stream_name",
		"nats_stream_max_age":        "nats.stream_max_age",
		"nats_durable_name":          "nats.durable_name",
		"nats_queue_group":           "nats.queue_group",
		"nats_subscribers":           "nats.subscribers_count",
		"nats_router_retry_count":    "nats.router_retry_count",
		"nats_router_retry_interval": "nats.router_retry_interval",
		"nats_router_throttle":       "nats.router_throttle_per_second",
		"nats_router_poison_topic":   "nats.router_poison_queue_topic",
		"nats_router_close_timeout":  "nats.router_close_timeout",

		// Auth
		"jwt_secret":        "auth.secret",
		"jwt_issuer":        "auth.issuer",
		"access_token_ttl":  "auth.access_token_ttl",
		"refresh_token_ttl": "auth.refresh_token_ttl",

		// Notifications
		"smtp_host":              "notify.email.host",
		"smtp_port":              "notify.email.port",
		"smtp_username":          "notify.email.username",
		"smtp_password":          "notify.email.password",
		"smtp_from":              "notify.email.from",
		"sms_enabled":            "notify.sms.enabled",
		"notify_channel_timeout": "notify.channel_timeout",
		"notify_rate_per_minute": "notify.rate_per_minute",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
