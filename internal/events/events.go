// Package events is the operations log: every alarm, command, telemetry,
// and state-transition event flowing over the bus is recorded as a fact row.
package events

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Event is one recorded fact.
type Event struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	DeviceID      string          `json:"device_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	PayloadDigest string          `json:"payload_digest,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Store persists and queries fact events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, deviceID, eventType string, from, to time.Time, limit int) ([]Event, error)
}

// NewID generates a random fact id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "fact-" + hex.EncodeToString(buf)
}

// DigestJSON computes a SHA256 hex digest for payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
