// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	return hub, cancel, done
}

func register(t *testing.T, hub *Hub, userID int64, admin bool) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID, admin)
	select {
	case hub.Register <- client:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return client
}

func expectMessage(t *testing.T, client *Client, wantType string) Message {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		if msg.Type != wantType {
			t.Fatalf("message type = %q, want %q", msg.Type, wantType)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no %s message received", wantType)
		return Message{}
	}
}

func expectNoMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.send:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	client := register(t, hub, 7, false)

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	// Unregister closes the send channel.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed")
	}
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	// Global fan-out: frames about one user reach every connected client,
	// including non-admin observers connected as a different user.
	subject := register(t, hub, 7, false)
	observer := register(t, hub, 8, false)
	admin := register(t, hub, 1, true)
	waitFor(t, func() bool { return hub.ClientCount() == 3 })

	hub.BroadcastLocation(7, map[string]int64{"user_id": 7})

	expectMessage(t, subject, MessageTypeLocationUpdate)
	expectMessage(t, observer, MessageTypeLocationUpdate)
	expectMessage(t, admin, MessageTypeLocationUpdate)

	hub.BroadcastAlert(7, map[string]string{"message": "Exited geofence: Home"})

	expectMessage(t, subject, MessageTypeNewAlert)
	expectMessage(t, observer, MessageTypeNewAlert)
	expectMessage(t, admin, MessageTypeNewAlert)
}

func TestHubAlertBroadcast(t *testing.T) {
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	subject := register(t, hub, 7, false)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.BroadcastAlert(7, map[string]string{"message": "Exited geofence: Home"})

	msg := expectMessage(t, subject, MessageTypeNewAlert)
	if msg.Data == nil {
		t.Error("alert frame missing data")
	}
}

func TestHubDropsStalledClient(t *testing.T) {
	hub, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	stalled := register(t, hub, 7, false)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	// Fill the send buffer so the next delivery cannot proceed.
	for i := 0; i < cap(stalled.send); i++ {
		stalled.send <- Message{Type: MessageTypePong}
	}

	hub.BroadcastLocation(7, nil)
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel, done := startHub(t)

	client := register(t, hub, 7, false)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel after shutdown")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after shutdown")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
