package telemetry

import (
	"context"
	"time"
)

// Repository persists ingested points for history queries. The control
// core never reads it back on the hot path; it is fed by bus sinks.
type Repository interface {
	InsertPoints(ctx context.Context, points []Point) error
	QueryRange(ctx context.Context, deviceID, parameter string, from, to time.Time) ([]Point, error)
}
