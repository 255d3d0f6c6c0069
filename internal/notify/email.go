// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// EmailConfig carries the SMTP settings for the email channel. The channel
// is considered unconfigured until Host and From are set.
type EmailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// EmailChannel delivers alert notifications over SMTP.
type EmailChannel struct {
	cfg EmailConfig

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel builds the SMTP channel.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Configured() bool {
	return c.cfg.Host != "" && c.cfg.From != ""
}

// Send delivers the alert message to the user's email address. smtp.SendMail
// has no context support, so the dial runs in a goroutine and the deadline
// abandons it; the SMTP connection then dies on its own timeout.
func (c *EmailChannel) Send(ctx context.Context, n geofence.Notification) error {
	if n.Email == "" {
		return fmt.Errorf("user %d has no email address", n.UserID)
	}

	msg := buildEmailMessage(c.cfg.From, n)

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.sendMail(addr, auth, c.cfg.From, []string{n.Email}, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", n.Email, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", n.Email, ctx.Err())
	}
}

func buildEmailMessage(from string, n geofence.Notification) []byte {
	subject := "Geofence Alert"
	switch n.Kind {
	case models.AlertKindEntry:
		subject = "Geofence Alert: Zone Entered"
	case models.AlertKindExit:
		subject = "Geofence Alert: Zone Exited"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", n.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.Message)
	b.WriteString("\r\n")
	return []byte(b.String())
}
