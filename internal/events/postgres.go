package events

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists fact events in the fact_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store over the pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("events: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Append records one event.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	if event.EventType == "" {
		return errors.New("events: empty event type")
	}
	if event.ID == "" {
		event.ID = NewID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.PayloadDigest == "" {
		event.PayloadDigest = DigestJSON(event.Payload)
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO fact_events (
	id, event_type, device_id, correlation_id, payload, payload_digest, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING`,
		event.ID, event.EventType, event.DeviceID, event.CorrelationID,
		event.Payload, event.PayloadDigest, event.OccurredAt)
	return err
}

// List returns events matching the filters, oldest first.
func (s *PostgresStore) List(ctx context.Context, deviceID, eventType string, from, to time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, event_type, device_id, correlation_id, payload, payload_digest, occurred_at
FROM fact_events
WHERE ($1 = '' OR device_id = $1)
  AND ($2 = '' OR event_type = $2)
  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
  AND ($4::timestamptz IS NULL OR occurred_at <= $4)
ORDER BY occurred_at ASC
LIMIT $5`,
		deviceID, eventType, nullableTime(from), nullableTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(
			&event.ID, &event.EventType, &event.DeviceID, &event.CorrelationID,
			&event.Payload, &event.PayloadDigest, &event.OccurredAt,
		); err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
