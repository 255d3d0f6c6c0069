// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

type memAssignments struct {
	zones []models.AssignedGeofence
}

func (m *memAssignments) ActiveAssignedGeofences(context.Context, int64) ([]models.AssignedGeofence, error) {
	return m.zones, nil
}

type memPositions struct {
	rows []models.Position
}

func (m *memPositions) PreviousPosition(_ context.Context, userID, beforeSeq int64) (*models.Position, error) {
	var best *models.Position
	for i := range m.rows {
		p := &m.rows[i]
		if p.UserID == userID && p.SequenceID < beforeSeq && (best == nil || p.SequenceID > best.SequenceID) {
			best = p
		}
	}
	return best, nil
}

type memAlerts struct {
	nextID         int64
	failGeofenceID int64
	rows           []*models.Alert
}

func (m *memAlerts) AppendAlert(_ context.Context, alert *models.Alert) error {
	if m.failGeofenceID != 0 && alert.GeofenceID == m.failGeofenceID {
		return errors.New("insert alert: connection reset")
	}
	m.nextID++
	alert.ID = m.nextID
	alert.CreatedAt = time.Now().UTC()
	m.rows = append(m.rows, alert)
	return nil
}

func (m *memAlerts) RecordDispatchOutcome(context.Context, int64, []models.ChannelOutcome) error {
	return nil
}

type memUsers struct{}

func (memUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	return &models.User{ID: id, Username: "jdoe", FullName: "Jane Doe"}, nil
}

type capturePublisher struct {
	locations map[string][]*LocationEvent
	alerts    []*AlertEvent
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{locations: make(map[string][]*LocationEvent)}
}

func (c *capturePublisher) PublishLocation(_ context.Context, topic string, event *LocationEvent) error {
	c.locations[topic] = append(c.locations[topic], event)
	return nil
}

func (c *capturePublisher) PublishAlert(_ context.Context, event *AlertEvent) error {
	c.alerts = append(c.alerts, event)
	return nil
}

func newTestPipeline(alerts *memAlerts, publisher *capturePublisher, positions *memPositions) *Pipeline {
	assignments := &memAssignments{zones: []models.AssignedGeofence{{
		Geofence: models.Geofence{
			ID:           3,
			Name:         "Home",
			RadiusMeters: 1000,
			IsActive:     true,
		},
		AlertOnEntry: true,
		AlertOnExit:  true,
	}}}

	engine := geofence.NewEngine(assignments, positions)
	dispatcher := geofence.NewDispatcher(alerts, memUsers{}, NewAlertPublisher(publisher), nil)
	return NewPipeline(engine, dispatcher, memUsers{}, publisher)
}

func locationMessage(t *testing.T, seq int64, lat, lon float64) *message.Message {
	t.Helper()
	event := NewLocationEvent(&models.Position{
		SequenceID: seq,
		UserID:     7,
		Latitude:   lat,
		Longitude:  lon,
		ObservedAt: time.Now().UTC(),
	})
	data, err := SerializeLocationEvent(event)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return message.NewMessage(event.EventID, data)
}

func TestPipelineDispatchesAlertsAndEnriches(t *testing.T) {
	alerts := &memAlerts{}
	publisher := newCapturePublisher()
	positions := &memPositions{}
	p := newTestPipeline(alerts, publisher, positions)

	// Walk in, then out: entry alert then exit alert, with the aggregate
	// flipping on the exit sample.
	steps := []struct {
		seq           int64
		lat, lon      float64
		wantOutOfZone bool
	}{
		{1, 0.001, 0.001, false},
		{2, 0.5, 0.5, true},
	}

	for _, step := range steps {
		positions.rows = append(positions.rows, models.Position{
			SequenceID: step.seq, UserID: 7, Latitude: step.lat, Longitude: step.lon,
		})
		if err := p.handle(locationMessage(t, step.seq, step.lat, step.lon)); err != nil {
			t.Fatalf("handle seq %d: %v", step.seq, err)
		}
	}

	if len(alerts.rows) != 2 {
		t.Fatalf("got %d alerts, want entry+exit", len(alerts.rows))
	}
	if alerts.rows[0].Kind != models.AlertKindEntry || alerts.rows[1].Kind != models.AlertKindExit {
		t.Errorf("alert kinds = %q, %q", alerts.rows[0].Kind, alerts.rows[1].Kind)
	}

	if len(publisher.alerts) != 2 {
		t.Fatalf("got %d alert events, want 2", len(publisher.alerts))
	}
	if publisher.alerts[0].Alert.Username != "jdoe" {
		t.Errorf("alert event missing display fields: %+v", publisher.alerts[0].Alert)
	}

	enriched := publisher.locations[TopicLocationEnriched]
	if len(enriched) != 2 {
		t.Fatalf("got %d enriched events, want 2", len(enriched))
	}
	for i, step := range steps {
		if enriched[i].IsOutOfZone != step.wantOutOfZone {
			t.Errorf("step %d: IsOutOfZone = %v, want %v", i, enriched[i].IsOutOfZone, step.wantOutOfZone)
		}
		if enriched[i].Username != "jdoe" {
			t.Errorf("step %d: enriched event missing username", i)
		}
	}
}

func TestPipelineAcksMalformedPayload(t *testing.T) {
	p := newTestPipeline(&memAlerts{}, newCapturePublisher(), &memPositions{})

	msg := message.NewMessage("bad", []byte("not an event"))
	if err := p.handle(msg); err != nil {
		t.Errorf("malformed payload should be dropped, not retried: %v", err)
	}
}

func TestPipelineDropsFailedDispatchWithoutRetry(t *testing.T) {
	// Two zones cover the sample; persistence fails for the second one.
	// The handler must ack anyway: redelivering would re-run detection
	// against the unchanged previous position and duplicate the first
	// zone's already-persisted alert.
	assignments := &memAssignments{zones: []models.AssignedGeofence{
		{
			Geofence:     models.Geofence{ID: 3, Name: "Home", RadiusMeters: 1000, IsActive: true},
			AlertOnEntry: true,
		},
		{
			Geofence:     models.Geofence{ID: 4, Name: "Work", RadiusMeters: 1000, IsActive: true},
			AlertOnEntry: true,
		},
	}}
	alerts := &memAlerts{failGeofenceID: 4}
	publisher := newCapturePublisher()
	positions := &memPositions{}

	engine := geofence.NewEngine(assignments, positions)
	dispatcher := geofence.NewDispatcher(alerts, memUsers{}, NewAlertPublisher(publisher), nil)
	p := NewPipeline(engine, dispatcher, memUsers{}, publisher)

	positions.rows = append(positions.rows, models.Position{
		SequenceID: 1, UserID: 7, Latitude: 0.001, Longitude: 0.001,
	})
	if err := p.handle(locationMessage(t, 1, 0.001, 0.001)); err != nil {
		t.Fatalf("failed dispatch must be dropped, not returned for retry: %v", err)
	}

	if len(alerts.rows) != 1 || alerts.rows[0].GeofenceID != 3 {
		t.Fatalf("persisted alerts = %+v, want exactly one for the first zone", alerts.rows)
	}

	// The enriched position still goes out despite the failed dispatch.
	if len(publisher.locations[TopicLocationEnriched]) != 1 {
		t.Errorf("enriched events = %d, want 1", len(publisher.locations[TopicLocationEnriched]))
	}
}
