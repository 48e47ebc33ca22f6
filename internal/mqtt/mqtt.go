// Package mqtt mirrors transmitted commands and lifecycle events to an MQTT
// broker, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/audio-remote/internal/logic"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "audio-remote"

// Topics are the two topics the mirror publishes to.
type Topics struct {
	Commands string
	System   string
}

// NewTopics derives the topics from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Commands: prefix + "/commands", System: prefix + "/system"}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishCommand mirrors one dispatch attempt.
	// Returns error if publishing fails (should not crash the process).
	PublishCommand(event CommandEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandEvent is one dispatch attempt that reached the encoder.
type CommandEvent struct {
	Timestamp time.Time
	Source    logic.ChannelID
	Command   logic.OutboundCommand
	Outcome   logic.Outcome
}

// SystemEvent represents a system lifecycle event (e.g., startup, suspend, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SUSPEND", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "IDLE"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// CommandPayload is the MQTT message payload for a command.
type CommandPayload struct {
	Command CommandPayloadInner `json:"command"`
}

// CommandPayloadInner contains the command details.
type CommandPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Cmd       string `json:"cmd"`
	Seq       uint16 `json:"seq"`
	Uptime    int64  `json:"uptime_ms"`
	Outcome   string `json:"outcome"`
}

// FormatCommandPayload creates the JSON payload for a command event.
func FormatCommandPayload(event CommandEvent) ([]byte, error) {
	return json.Marshal(CommandPayload{
		Command: CommandPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Source:    string(event.Source),
			Cmd:       string(event.Command.Name),
			Seq:       event.Command.Seq,
			Uptime:    event.Command.Timestamp,
			Outcome:   string(event.Outcome),
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
