// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

// Package metrics exposes Prometheus instrumentation for the location
// pipeline. All collectors register on the default registry via promauto;
// the /metrics endpoint serves them with promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	positionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_positions_ingested_total",
		Help: "Total position samples accepted and persisted.",
	})

	geofenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_geofence_transitions_total",
		Help: "Geofence boundary crossings detected, by edge kind.",
	}, []string{"kind"})

	evaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_geofence_evaluation_failures_total",
		Help: "Evaluations skipped because a store lookup failed, by stage.",
	}, []string{"stage"})

	alertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_alerts_dispatched_total",
		Help: "Alerts persisted by the dispatcher, by alert type.",
	}, []string{"alert_type"})

	alertDispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_alert_dispatch_failures_total",
		Help: "Alert dispatches that failed at the persistence stage.",
	})

	notificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_notification_outcomes_total",
		Help: "Notification channel attempts, by channel and result.",
	}, []string{"channel", "result"})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_websocket_connections",
		Help: "Currently connected WebSocket clients.",
	})

	websocketMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_websocket_messages_total",
		Help: "Messages broadcast to WebSocket clients, by message type.",
	}, []string{"type"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_events_published_total",
		Help: "Events published to the message bus, by topic and result.",
	}, []string{"topic", "result"})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_events_consumed_total",
		Help: "Events consumed from the message bus, by topic and result.",
	}, []string{"topic", "result"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracking_http_request_duration_seconds",
		Help:    "HTTP request latency, by method, route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// RecordPositionIngested counts one accepted position sample.
func RecordPositionIngested() {
	positionsIngested.Inc()
}

// RecordGeofenceTransition counts one detected boundary crossing.
func RecordGeofenceTransition(kind string) {
	geofenceTransitions.WithLabelValues(kind).Inc()
}

// RecordEvaluationFailure counts one evaluation skipped at the given stage.
func RecordEvaluationFailure(stage string) {
	evaluationFailures.WithLabelValues(stage).Inc()
}

// RecordAlertDispatched counts one persisted alert.
func RecordAlertDispatched(alertType string) {
	alertsDispatched.WithLabelValues(alertType).Inc()
}

// RecordAlertDispatchFailure counts one alert lost at persistence.
func RecordAlertDispatchFailure() {
	alertDispatchFailures.Inc()
}

// RecordNotificationOutcome counts one channel attempt.
func RecordNotificationOutcome(channel string, succeeded bool) {
	result := "failure"
	if succeeded {
		result = "success"
	}
	notificationOutcomes.WithLabelValues(channel, result).Inc()
}

// RecordWebSocketConnect tracks a client connecting.
func RecordWebSocketConnect() {
	websocketConnections.Inc()
}

// RecordWebSocketDisconnect tracks a client disconnecting.
func RecordWebSocketDisconnect() {
	websocketConnections.Dec()
}

// RecordWebSocketMessage counts one broadcast message.
func RecordWebSocketMessage(messageType string) {
	websocketMessages.WithLabelValues(messageType).Inc()
}

// RecordEventPublished counts one bus publish attempt.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	eventsPublished.WithLabelValues(topic, result).Inc()
}

// RecordEventConsumed counts one bus delivery.
func RecordEventConsumed(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	eventsConsumed.WithLabelValues(topic, result).Inc()
}

// RecordHTTPRequest observes one request's latency.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
