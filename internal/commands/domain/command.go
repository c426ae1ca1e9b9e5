package commands

import (
	"encoding/json"
	"errors"
	"time"
)

// Command lifecycle statuses.
const (
	StatusAdmitted = "admitted"
	StatusRejected = "rejected"
	StatusExecuted = "executed"
	StatusFailed   = "failed"
)

// ErrNotFound is returned when a command id is unknown.
var ErrNotFound = errors.New("commands: not found")

// Command represents one device command and its admission outcome.
type Command struct {
	CommandID      string          `json:"command_id"`
	DeviceID       string          `json:"device_id"`
	CommandType    string          `json:"command_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Operator       string          `json:"operator,omitempty"`
	Status         string          `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DispatchedAt   time.Time       `json:"dispatched_at,omitempty"`
	CompletedAt    time.Time       `json:"completed_at,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Terminal reports whether the command has reached a final status.
func (c Command) Terminal() bool {
	switch c.Status {
	case StatusRejected, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}
