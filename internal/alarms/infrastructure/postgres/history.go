// Package postgres persists alarm history. It is a sink fed by bus
// events; the in-memory repository stays authoritative for the live set.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"gse-control/internal/alarms/application"
	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/eventing"
)

// HistorySink upserts alarm rows as lifecycle events arrive.
type HistorySink struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewHistorySink constructs a sink over the pool.
func NewHistorySink(pool *pgxpool.Pool, logger zerolog.Logger) (*HistorySink, error) {
	if pool == nil {
		return nil, errors.New("alarm history: nil pool")
	}
	return &HistorySink{pool: pool, logger: logger}, nil
}

// Attach subscribes the sink to alarm lifecycle events.
func (s *HistorySink) Attach(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[application.AlarmRaised](), func(_ context.Context, event any) error {
		s.upsertAsync(event.(application.AlarmRaised).Alarm)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[application.AlarmAcknowledged](), func(_ context.Context, event any) error {
		s.upsertAsync(event.(application.AlarmAcknowledged).Alarm)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[application.AlarmCleared](), func(_ context.Context, event any) error {
		s.upsertAsync(event.(application.AlarmCleared).Alarm)
		return nil
	})
}

func (s *HistorySink) upsertAsync(alarm alarms.Alarm) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Upsert(ctx, alarm); err != nil {
			s.logger.Warn().Err(err).Str("alarm_id", alarm.ID).Msg("alarm history upsert failed")
		}
	}()
}

// Upsert writes one alarm row keyed by alarm id.
func (s *HistorySink) Upsert(ctx context.Context, alarm alarms.Alarm) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO alarm_history (
	id, device_id, parameter, alarm_type, severity, threshold, actual_value,
	status, triggered_at, acked_by, acked_at, cleared_at, duration_seconds
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	severity = EXCLUDED.severity,
	actual_value = EXCLUDED.actual_value,
	status = EXCLUDED.status,
	acked_by = EXCLUDED.acked_by,
	acked_at = EXCLUDED.acked_at,
	cleared_at = EXCLUDED.cleared_at,
	duration_seconds = EXCLUDED.duration_seconds`,
		alarm.ID, alarm.DeviceID, alarm.Parameter, string(alarm.Type), alarm.Severity.String(),
		alarm.Threshold, alarm.ActualValue, alarm.Status, alarm.TriggeredAt,
		nullableString(alarm.AckedBy), nullableTime(alarm.AckedAt), nullableTime(alarm.ClearedAt),
		alarm.Duration.Seconds())
	return err
}

// ListRange loads alarm history rows for reporting, oldest first.
func (s *HistorySink) ListRange(ctx context.Context, deviceID string, from, to time.Time) ([]alarms.Alarm, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, device_id, parameter, alarm_type, severity, threshold, actual_value,
	status, triggered_at, acked_by, acked_at, cleared_at, duration_seconds
FROM alarm_history
WHERE ($1 = '' OR device_id = $1)
  AND ($2::timestamptz IS NULL OR triggered_at >= $2)
  AND ($3::timestamptz IS NULL OR triggered_at <= $3)
ORDER BY triggered_at ASC`,
		deviceID, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alarms.Alarm
	for rows.Next() {
		var (
			alarm     alarms.Alarm
			alarmType string
			severity  string
			ackedBy   *string
			ackedAt   *time.Time
			clearedAt *time.Time
			duration  float64
		)
		if err := rows.Scan(
			&alarm.ID, &alarm.DeviceID, &alarm.Parameter, &alarmType, &severity,
			&alarm.Threshold, &alarm.ActualValue, &alarm.Status, &alarm.TriggeredAt,
			&ackedBy, &ackedAt, &clearedAt, &duration,
		); err != nil {
			return nil, err
		}
		alarm.Type = alarms.Type(alarmType)
		alarm.Severity = alarms.ParseSeverity(severity)
		if ackedBy != nil {
			alarm.AckedBy = *ackedBy
		}
		if ackedAt != nil {
			alarm.AckedAt = *ackedAt
		}
		if clearedAt != nil {
			alarm.ClearedAt = *clearedAt
		}
		alarm.Duration = time.Duration(duration * float64(time.Second))
		out = append(out, alarm)
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
