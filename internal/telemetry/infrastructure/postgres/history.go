// Package postgres persists telemetry history fed by bus events.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"gse-control/internal/eventing"
	telemetryevents "gse-control/internal/telemetry/application/events"
	telemetry "gse-control/internal/telemetry/domain"
)

// HistorySink appends telemetry rows as points clear the pipeline.
type HistorySink struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewHistorySink constructs a sink over the pool.
func NewHistorySink(pool *pgxpool.Pool, logger zerolog.Logger) (*HistorySink, error) {
	if pool == nil {
		return nil, errors.New("telemetry history: nil pool")
	}
	return &HistorySink{pool: pool, logger: logger}, nil
}

// Attach subscribes the sink to telemetry events.
func (s *HistorySink) Attach(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[telemetryevents.TelemetryReceived](), func(_ context.Context, event any) error {
		e := event.(telemetryevents.TelemetryReceived)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.InsertPoints(ctx, []telemetry.Point{e.Point}); err != nil {
				s.logger.Warn().Err(err).Str("device_id", e.DeviceID).Msg("telemetry history insert failed")
			}
		}()
		return nil
	})
}

// InsertPoints appends telemetry rows.
func (s *HistorySink) InsertPoints(ctx context.Context, points []telemetry.Point) error {
	for _, p := range points {
		if _, err := s.pool.Exec(ctx, `
INSERT INTO telemetry_history (device_id, parameter, ts, value, unit, status)
VALUES ($1,$2,$3,$4,$5,$6)`,
			p.DeviceID, p.Parameter, p.Timestamp, p.Value, p.Unit, p.Status); err != nil {
			return err
		}
	}
	return nil
}

// QueryRange loads points for one (device, parameter) pair, oldest first.
func (s *HistorySink) QueryRange(ctx context.Context, deviceID, parameter string, from, to time.Time) ([]telemetry.Point, error) {
	rows, err := s.pool.Query(ctx, `
SELECT device_id, parameter, ts, value, unit, status
FROM telemetry_history
WHERE device_id = $1 AND parameter = $2
  AND ($3::timestamptz IS NULL OR ts >= $3)
  AND ($4::timestamptz IS NULL OR ts <= $4)
ORDER BY ts ASC`,
		deviceID, parameter, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.Point
	for rows.Next() {
		var p telemetry.Point
		if err := rows.Scan(&p.DeviceID, &p.Parameter, &p.Timestamp, &p.Value, &p.Unit, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
