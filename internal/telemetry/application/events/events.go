// Package events defines telemetry events for the bus.
package events

import (
	"time"

	telemetry "gse-control/internal/telemetry/domain"
)

// TelemetryReceived is emitted after a point clears validation and the
// detection pipeline has run.
type TelemetryReceived struct {
	Point      telemetry.Point `json:"point"`
	DeviceID   string          `json:"device_id"`
	Anomalous  bool            `json:"anomalous"`
	OccurredAt time.Time       `json:"occurred_at"`
}
