// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package websocket delivers real-time location updates and alerts to
// connected dashboard clients over gorilla/websocket. Messages arrive from
// the event bus via the NATS bridge and fan out through the hub.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
)

// Message types on the wire.
const (
	MessageTypeLocationUpdate = "location_update"
	MessageTypeNewAlert       = "new_alert"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message is one WebSocket frame payload.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MarshalMessage encodes a message for the wire.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// envelope pairs a message with the user it concerns. The subject is
// interest metadata only: delivery is a global fan-out and every connected
// client receives every frame. Access control, if it is ever needed,
// belongs at the transport boundary, not here.
type envelope struct {
	msg           Message
	subjectUserID int64
}

// Hub maintains the set of active clients and fans messages out to them.
// Selection is priority ordered so client state is always consistent before
// messages are delivered: shutdown first, then lifecycle, then broadcast.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run operates the hub until the context is canceled, then closes every
// client and returns ctx.Err(). Designed to run under suture supervision.
func (h *Hub) Run(ctx context.Context) error {
	for {
		// Shutdown has highest priority.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Lifecycle events before broadcasts, so a disconnecting client
		// never receives further frames.
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.RecordWebSocketConnect()
	logging.Info().
		Int64("user_id", client.userID).
		Int("total_clients", total).
		Msg("WebSocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.RecordWebSocketDisconnect()
	}
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().
		Int64("user_id", client.userID).
		Int("total_clients", total).
		Msg("WebSocket client disconnected")
}

// deliver sends the envelope to every connected client in ascending
// client-id order. The ordering keeps delivery deterministic when several
// clients are connected. Clients with a full send buffer are dropped.
func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var stalled []*Client
	for _, client := range clients {
		select {
		case client.send <- env.msg:
		default:
			stalled = append(stalled, client)
		}
	}

	for _, client := range stalled {
		close(client.send)
		delete(h.clients, client)
		metrics.RecordWebSocketDisconnect()
		logging.Warn().
			Int64("user_id", client.userID).
			Msg("Dropping stalled WebSocket client")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.RecordWebSocketDisconnect()
	}
	h.mu.Unlock()

	logging.Info().
		Str("component", "websocket-hub").
		AnErr("reason", ctx.Err()).
		Int("clients_closed", len(clients)).
		Msg("WebSocket hub stopped")
}

// BroadcastLocation fans a location update out to every connected client.
// Drops the frame when the broadcast buffer is full.
func (h *Hub) BroadcastLocation(subjectUserID int64, data interface{}) {
	h.enqueue(envelope{
		msg:           Message{Type: MessageTypeLocationUpdate, Data: data},
		subjectUserID: subjectUserID,
	})
}

// BroadcastAlert fans a new alert out to every connected client.
func (h *Hub) BroadcastAlert(subjectUserID int64, data interface{}) {
	h.enqueue(envelope{
		msg:           Message{Type: MessageTypeNewAlert, Data: data},
		subjectUserID: subjectUserID,
	})
}

func (h *Hub) enqueue(env envelope) {
	select {
	case h.broadcast <- env:
		metrics.RecordWebSocketMessage(env.msg.Type)
	default:
		logging.Warn().
			Str("message_type", env.msg.Type).
			Msg("Broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
