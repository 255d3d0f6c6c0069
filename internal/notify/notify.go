// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package notify implements the best-effort notification channels driven by
// the alert dispatcher. Channels are independent: one channel failing, being
// unconfigured, or timing out never affects another, and no channel error
// ever propagates past the outcome record.
package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// DefaultChannelTimeout bounds a single channel delivery attempt.
const DefaultChannelTimeout = 10 * time.Second

// Channel is one delivery mechanism for alert notifications.
type Channel interface {
	// Name identifies the channel in outcome records and metrics.
	Name() string

	// Configured reports whether the channel has the settings it needs to
	// attempt delivery at all.
	Configured() bool

	// Send attempts one delivery. The context carries the per-channel
	// deadline.
	Send(ctx context.Context, n geofence.Notification) error
}

// Manager fans one notification out to every registered channel and collects
// per-channel outcomes. It implements the dispatcher's Notifier contract.
type Manager struct {
	channels []Channel
	timeout  time.Duration
	limiter  *rate.Limiter
}

// NewManager builds a manager over the given channels. A nil limiter
// disables rate limiting.
func NewManager(channels []Channel, timeout time.Duration, limiter *rate.Limiter) *Manager {
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}
	return &Manager{
		channels: channels,
		timeout:  timeout,
		limiter:  limiter,
	}
}

// Dispatch runs every channel for the notification and returns one outcome
// per channel, in registration order. It never returns an error; failures
// are captured in the outcomes and logged.
func (m *Manager) Dispatch(ctx context.Context, n geofence.Notification) []models.ChannelOutcome {
	outcomes := make([]models.ChannelOutcome, 0, len(m.channels))

	for _, ch := range m.channels {
		outcome := m.deliver(ctx, ch, n)
		metrics.RecordNotificationOutcome(outcome.Channel, outcome.Succeeded)
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (m *Manager) deliver(ctx context.Context, ch Channel, n geofence.Notification) models.ChannelOutcome {
	outcome := models.ChannelOutcome{Channel: ch.Name()}

	if !ch.Configured() {
		outcome.Error = "channel not configured"
		return outcome
	}
	if m.limiter != nil && !m.limiter.Allow() {
		outcome.Error = "notification rate limit exceeded"
		logging.Warn().
			Str("channel", ch.Name()).
			Int64("user_id", n.UserID).
			Msg("Notification dropped by rate limiter")
		return outcome
	}

	outcome.Attempted = true

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := ch.Send(sendCtx, n); err != nil {
		outcome.Error = err.Error()
		logging.Warn().
			Err(err).
			Str("channel", ch.Name()).
			Int64("user_id", n.UserID).
			Msg("Notification delivery failed")
		return outcome
	}

	outcome.Succeeded = true
	return outcome
}
