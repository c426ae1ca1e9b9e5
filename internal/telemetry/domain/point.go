package telemetry

import (
	"errors"
	"time"
)

// Device-reported point statuses. The core treats everything other than
// FAULT as informational.
const (
	PointStatusNominal = "NOMINAL"
	PointStatusWarning = "WARNING"
	PointStatusFault   = "FAULT"
)

// Point is one validated telemetry sample for a (device, parameter) pair.
type Point struct {
	DeviceID  string    `json:"device_id"`
	Parameter string    `json:"parameter_name"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// Per-point validation failures. Each point in a batch is accepted or
// rejected independently.
var (
	ErrUnknownDevice    = errors.New("telemetry: unknown device")
	ErrUnknownParameter = errors.New("telemetry: unknown parameter")
	ErrBadTimestamp     = errors.New("telemetry: bad timestamp")
)

// Validate checks the point's shape. Device and parameter existence are
// checked against the catalog by the caller.
func (p Point) Validate() error {
	if p.DeviceID == "" {
		return ErrUnknownDevice
	}
	if p.Parameter == "" {
		return ErrUnknownParameter
	}
	if p.Timestamp.IsZero() {
		return ErrBadTimestamp
	}
	return nil
}
