// Package mqtt mirrors controller telemetry to a broker and accepts
// commands from it, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
)

// Topic is the MQTT topic for light telemetry.
const Topic = "traffic/light/telemetry"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "traffic/light/system"

// TopicCommand carries serial-protocol frames addressed to the controller.
const TopicCommand = "traffic/light/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTelemetry sends the current light state to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(event TelemetryEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TelemetryEvent is one reporter emission with the state it describes.
type TelemetryEvent struct {
	Timestamp  time.Time
	State      logic.Label
	Brightness int
	Phase      int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the telemetry message body.
type Payload struct {
	Light LightPayload `json:"light"`
}

// LightPayload contains the light state details.
type LightPayload struct {
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"`
	Brightness int    `json:"brightness"`
	Phase      int    `json:"phase"`
}

// FormatPayload creates the JSON payload for a telemetry event.
func FormatPayload(event TelemetryEvent) ([]byte, error) {
	payload := Payload{
		Light: LightPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			State:      string(event.State),
			Brightness: event.Brightness,
			Phase:      event.Phase,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is used for simple events (LWT) that don't carry a full
// status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is registered with the broker as the last will.
func WillPayload() []byte {
	b, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	return b
}
