// Package mqtt announces doorbell presses and daemon lifecycle events on an
// MQTT broker. Publisher is the seam tests replace with FakePublisher.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/doorbell-pi/internal/logic"
)

// Topic is the MQTT topic for doorbell press events.
const Topic = "home/doorbell/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/doorbell/system"

// EventPress is the event name carried by every press payload.
const EventPress = "PRESS"

// Publisher sends presses to Topic and lifecycle events to TopicSystem.
// Errors are reported to the caller and are never fatal to a ring.
type Publisher interface {
	Publish(press logic.Press) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus is implemented by publishers that track the broker link.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a daemon lifecycle message: STARTUP, SHUTDOWN, HEARTBEAT,
// RECONNECTED or the OFFLINE will.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // shutdown cause: SIGINT, SIGTERM, ERROR, UNKNOWN

	// RawPayload replaces the generated body, typically a status snapshot.
	RawPayload []byte
	Retained   bool
}

// Payload is the body published to Topic for each press.
type Payload struct {
	Doorbell DoorbellPayload `json:"doorbell"`
}

// DoorbellPayload contains the press details.
type DoorbellPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source"`
	ID        string `json:"id"`
}

// FormatPayload creates the JSON payload for a doorbell press.
func FormatPayload(press logic.Press) ([]byte, error) {
	return json.Marshal(Payload{Doorbell: DoorbellPayload{
		Timestamp: press.Time.UTC().Format(time.RFC3339),
		Event:     EventPress,
		Source:    string(press.Source),
		ID:        press.ID.String(),
	}})
}

// SystemPayload is the body of lifecycle events that carry no status
// snapshot (the will and RECONNECTED).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload returns event.RawPayload when set, else a minimal
// SystemPayload.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{System: SystemPayloadInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
	}})
}

// WillPayload is the retained last-will message the broker publishes on
// TopicSystem if the daemon vanishes without a clean disconnect.
func WillPayload(now time.Time) []byte {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	return payload
}
