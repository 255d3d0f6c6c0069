// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
)

// MessageSource is the subscription surface the bridge needs, satisfied by
// *events.Subscriber.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Bridge forwards bus events to the WebSocket hub: enriched locations become
// location_update frames and created alerts become new_alert frames.
type Bridge struct {
	hub    *Hub
	source MessageSource

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewBridge creates a bus-to-WebSocket bridge.
func NewBridge(hub *Hub, source MessageSource) *Bridge {
	return &Bridge{
		hub:    hub,
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start subscribes to both pipeline topics and begins forwarding. Safe to
// call once; subsequent calls are no-ops.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	locations, err := b.source.Subscribe(ctx, events.TopicLocationEnriched)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicLocationEnriched, err)
	}
	alerts, err := b.source.Subscribe(ctx, events.TopicAlertCreated)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicAlertCreated, err)
	}

	b.wg.Add(2)
	go b.forward(ctx, locations, b.handleLocation)
	go b.forward(ctx, alerts, b.handleAlert)

	logging.Info().Msg("WebSocket bridge started")
	return nil
}

// Stop halts forwarding and waits for the pump goroutines to drain.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopCh)
	b.wg.Wait()
	logging.Info().Msg("WebSocket bridge stopped")
}

func (b *Bridge) forward(ctx context.Context, messages <-chan *message.Message, handle func([]byte)) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			handle(msg.Payload)
			msg.Ack()
		}
	}
}

// LocationFrame is the location_update wire payload consumed by dashboard
// and mobile clients: identity and display fields at the top level, the
// position itself nested under location.
type LocationFrame struct {
	UserID   int64         `json:"user_id"`
	Username string        `json:"username,omitempty"`
	FullName string        `json:"full_name,omitempty"`
	Location FramePosition `json:"location"`
}

// FramePosition mirrors the stored position plus the aggregate zone status.
type FramePosition struct {
	SequenceID  int64     `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Accuracy    *float64  `json:"accuracy,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
	Heading     *float64  `json:"heading,omitempty"`
	Altitude    *float64  `json:"altitude,omitempty"`
	ObservedAt  time.Time `json:"timestamp"`
	IsOutOfZone bool      `json:"is_out_of_zone"`
}

func (b *Bridge) handleLocation(payload []byte) {
	event, err := events.DeserializeLocationEvent(payload)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to decode location event for broadcast")
		metrics.RecordEventConsumed(events.TopicLocationEnriched, err)
		return
	}
	metrics.RecordEventConsumed(events.TopicLocationEnriched, nil)

	frame := &LocationFrame{
		UserID:   event.UserID,
		Username: event.Username,
		FullName: event.FullName,
		Location: FramePosition{
			SequenceID:  event.SequenceID,
			Latitude:    event.Latitude,
			Longitude:   event.Longitude,
			Accuracy:    event.Accuracy,
			Speed:       event.Speed,
			Heading:     event.Heading,
			Altitude:    event.Altitude,
			ObservedAt:  event.ObservedAt,
			IsOutOfZone: event.IsOutOfZone,
		},
	}
	b.hub.BroadcastLocation(event.UserID, frame)
}

func (b *Bridge) handleAlert(payload []byte) {
	event, err := events.DeserializeAlertEvent(payload)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to decode alert event for broadcast")
		metrics.RecordEventConsumed(events.TopicAlertCreated, err)
		return
	}
	metrics.RecordEventConsumed(events.TopicAlertCreated, nil)
	b.hub.BroadcastAlert(event.Alert.UserID, &event.Alert)
}
