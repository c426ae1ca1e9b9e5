// Package events defines command lifecycle events for the bus.
package events

import (
	"encoding/json"
	"time"
)

// CommandAdmitted is emitted when a command passes validation and interlocks.
type CommandAdmitted struct {
	EventID     string          `json:"event_id"`
	CommandID   string          `json:"command_id"`
	DeviceID    string          `json:"device_id"`
	CommandType string          `json:"command_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Operator    string          `json:"operator,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// CommandRejected is emitted when validation or an interlock blocks a command.
type CommandRejected struct {
	EventID     string    `json:"event_id"`
	CommandID   string    `json:"command_id"`
	DeviceID    string    `json:"device_id"`
	CommandType string    `json:"command_type"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CommandExecuted is emitted when the device reports successful execution.
type CommandExecuted struct {
	EventID    string    `json:"event_id"`
	CommandID  string    `json:"command_id"`
	DeviceID   string    `json:"device_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CommandFailed is emitted when the device reports a failed execution.
type CommandFailed struct {
	EventID    string    `json:"event_id"`
	CommandID  string    `json:"command_id"`
	DeviceID   string    `json:"device_id"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}
