// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
)

// ErrSMSNotImplemented is returned for every SMS delivery attempt until a
// provider integration lands. The channel stays registered so its outcome
// record keeps reporting the attempted/failed state honestly.
var ErrSMSNotImplemented = errors.New("sms delivery not implemented")

// SMSConfig carries provider settings for the SMS channel.
type SMSConfig struct {
	Enabled bool `koanf:"enabled"`
}

// SMSChannel is a placeholder for an SMS provider integration.
type SMSChannel struct {
	cfg SMSConfig
}

// NewSMSChannel builds the SMS channel stub.
func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	return &SMSChannel{cfg: cfg}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Configured() bool { return c.cfg.Enabled }

func (c *SMSChannel) Send(_ context.Context, n geofence.Notification) error {
	if n.Phone == "" {
		return fmt.Errorf("user %d has no phone number", n.UserID)
	}
	return ErrSMSNotImplemented
}
