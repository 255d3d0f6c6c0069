// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// SerializeLocationEvent validates and encodes a location event.
func SerializeLocationEvent(event *LocationEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate location event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal location event: %w", err)
	}
	return data, nil
}

// DeserializeLocationEvent decodes and validates a location event.
func DeserializeLocationEvent(data []byte) (*LocationEvent, error) {
	var event LocationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal location event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate location event: %w", err)
	}
	return &event, nil
}

// SerializeAlertEvent validates and encodes an alert event.
func SerializeAlertEvent(event *AlertEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate alert event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal alert event: %w", err)
	}
	return data, nil
}

// DeserializeAlertEvent decodes and validates an alert event.
func DeserializeAlertEvent(data []byte) (*AlertEvent, error) {
	var event AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal alert event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate alert event: %w", err)
	}
	return &event, nil
}
