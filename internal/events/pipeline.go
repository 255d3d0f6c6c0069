// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/geofence"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/logging"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/metrics"
)

// EvaluationHandlerName identifies the pipeline's router handler.
const EvaluationHandlerName = "geofence_evaluation"

// EventPublisher is the publishing surface the pipeline needs, satisfied by
// *Publisher.
type EventPublisher interface {
	PublishLocation(ctx context.Context, topic string, event *LocationEvent) error
	PublishAlert(ctx context.Context, event *AlertEvent) error
}

// AlertPublisher adapts the event publisher to the dispatcher's broadcaster
// contract: a dispatched alert becomes an alerts.created event that the
// WebSocket bridge fans out.
type AlertPublisher struct {
	publisher EventPublisher
}

// NewAlertPublisher wraps a publisher as an alert broadcaster.
func NewAlertPublisher(publisher EventPublisher) *AlertPublisher {
	return &AlertPublisher{publisher: publisher}
}

// BroadcastAlert publishes the alert notice to alerts.created.
func (a *AlertPublisher) BroadcastAlert(ctx context.Context, notice *geofence.AlertNotice) error {
	return a.publisher.PublishAlert(ctx, NewAlertEvent(notice))
}

// Pipeline consumes raw location events, runs the geofence engine, drives
// alert dispatch, and republishes the enriched position for real-time
// delivery.
type Pipeline struct {
	engine     *geofence.Engine
	dispatcher *geofence.Dispatcher
	users      geofence.UserStore
	publisher  EventPublisher
}

// NewPipeline wires the evaluation pipeline.
func NewPipeline(engine *geofence.Engine, dispatcher *geofence.Dispatcher, users geofence.UserStore, publisher EventPublisher) *Pipeline {
	return &Pipeline{
		engine:     engine,
		dispatcher: dispatcher,
		users:      users,
		publisher:  publisher,
	}
}

// Register attaches the evaluation handler to the router, consuming
// locations.updated.
func (p *Pipeline) Register(router *Router, subscriber message.Subscriber) {
	router.AddConsumerHandler(EvaluationHandlerName, TopicLocationUpdated, subscriber, p.handle)
}

// handle processes one raw location event. A malformed payload is dropped
// (acked) since retrying cannot fix it. A failed alert persistence is also
// dropped after logging: redelivering the event would re-run detection
// against the same previous position and duplicate the alerts that did
// persist, while the underlying zone state is re-derived correctly on the
// user's next sample anyway.
func (p *Pipeline) handle(msg *message.Message) error {
	event, err := DeserializeLocationEvent(msg.Payload)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping malformed location event")
		metrics.RecordEventConsumed(TopicLocationUpdated, err)
		return nil
	}
	metrics.RecordEventConsumed(TopicLocationUpdated, nil)

	ctx := msg.Context()
	pos := event.Position()
	eval := p.engine.Evaluate(ctx, pos)

	for _, transition := range eval.Events {
		if _, err := p.dispatcher.Dispatch(ctx, transition); err != nil {
			logging.Error().
				Err(err).
				Int64("user_id", transition.UserID).
				Int64("geofence_id", transition.GeofenceID).
				Str("kind", string(transition.Kind)).
				Msg("Alert dispatch failed, dropping transition")
		}
	}

	p.publishEnriched(ctx, event, eval)
	return nil
}

// publishEnriched republishes the position with the aggregate zone status
// and display fields. Best-effort: a failed publish only costs one realtime
// update, not the evaluation.
func (p *Pipeline) publishEnriched(ctx context.Context, event *LocationEvent, eval geofence.Evaluation) {
	enriched := *event
	enriched.IsOutOfZone = eval.IsOutOfZone

	if user, err := p.users.GetUser(ctx, event.UserID); err == nil {
		enriched.Username = user.Username
		enriched.FullName = user.FullName
	}

	if err := p.publisher.PublishLocation(ctx, TopicLocationEnriched, &enriched); err != nil {
		logging.Warn().
			Err(err).
			Int64("user_id", event.UserID).
			Int64("sequence_id", event.SequenceID).
			Msg("Failed to publish enriched location")
	}
}
