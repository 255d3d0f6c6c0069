// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package geofence

import (
	"context"
	"fmt"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

// InAppChannel is the outcome name for the persisted alert row itself, which
// doubles as the in-app notification.
const InAppChannel = "in_app"

// Dispatcher drives a transition event through the alert pipeline:
// persist, broadcast, notify, record outcome. Only the persistence stage can
// fail the dispatch; broadcast and notification failures are logged and
// captured in the outcome record but never abort the pipeline.
type Dispatcher struct {
	alerts      AlertStore
	users       UserStore
	broadcaster AlertBroadcaster
	notifier    Notifier
}

// NewDispatcher builds an alert dispatcher. broadcaster and notifier may be
// nil; the corresponding stages are then skipped.
func NewDispatcher(alerts AlertStore, users UserStore, broadcaster AlertBroadcaster, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		alerts:      alerts,
		users:       users,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// Dispatch persists the alert for one transition event and fans it out.
// The returned alert carries its generated id and creation time. An error is
// returned only when the alert row could not be written; in that case nothing
// was broadcast or notified.
func (d *Dispatcher) Dispatch(ctx context.Context, event TransitionEvent) (*models.Alert, error) {
	alert := &models.Alert{
		UserID:     event.UserID,
		GeofenceID: event.GeofenceID,
		Kind:       event.AlertKind(),
		Message:    event.Message(),
	}

	if err := d.alerts.AppendAlert(ctx, alert); err != nil {
		metrics.RecordAlertDispatchFailure()
		return nil, fmt.Errorf("persist alert for user %d geofence %d: %w", event.UserID, event.GeofenceID, err)
	}
	metrics.RecordAlertDispatched(string(alert.Kind))

	// Display and contact fields are best-effort enrichment; a failed user
	// lookup degrades the broadcast payload and skips external channels.
	user, err := d.users.GetUser(ctx, event.UserID)
	if err != nil {
		logging.Warn().
			Err(err).
			Int64("user_id", event.UserID).
			Int64("alert_id", alert.ID).
			Msg("Alert dispatched without user enrichment")
		user = nil
	}

	d.broadcast(ctx, alert, event, user)

	outcomes := d.notify(ctx, alert, user)
	if err := d.alerts.RecordDispatchOutcome(ctx, alert.ID, outcomes); err != nil {
		logging.Error().
			Err(err).
			Int64("alert_id", alert.ID).
			Msg("Failed to record alert dispatch outcome")
	} else {
		alert.NotificationDispatched = true
		if encoded, encErr := models.EncodeChannelOutcomes(outcomes); encErr == nil {
			alert.ChannelOutcomes = encoded
		}
	}

	return alert, nil
}

func (d *Dispatcher) broadcast(ctx context.Context, alert *models.Alert, event TransitionEvent, user *models.User) {
	if d.broadcaster == nil {
		return
	}

	notice := &AlertNotice{
		ID:           alert.ID,
		UserID:       alert.UserID,
		GeofenceID:   alert.GeofenceID,
		Kind:         alert.Kind,
		Message:      alert.Message,
		CreatedAt:    alert.CreatedAt,
		GeofenceName: event.GeofenceName,
	}
	if user != nil {
		notice.Username = user.Username
		notice.FullName = user.FullName
	}

	if err := d.broadcaster.BroadcastAlert(ctx, notice); err != nil {
		logging.Warn().
			Err(err).
			Int64("alert_id", alert.ID).
			Msg("Alert broadcast failed")
	}
}

// notify runs the external channels and appends the implicit in-app outcome,
// which succeeded by construction once the alert row exists.
func (d *Dispatcher) notify(ctx context.Context, alert *models.Alert, user *models.User) []models.ChannelOutcome {
	var outcomes []models.ChannelOutcome

	if d.notifier != nil && user != nil {
		outcomes = d.notifier.Dispatch(ctx, Notification{
			UserID:  user.ID,
			Email:   user.Email,
			Phone:   user.PhoneNumber,
			Message: alert.Message,
			Kind:    alert.Kind,
		})
	}

	return append(outcomes, models.ChannelOutcome{
		Channel:   InAppChannel,
		Attempted: true,
		Succeeded: true,
	})
}
