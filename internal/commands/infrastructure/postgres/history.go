// Package postgres persists command history. It is a sink fed by bus
// events; the in-memory repository stays authoritative for admission.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	commandsevents "gse-control/internal/commands/application/events"
	"gse-control/internal/eventing"
)

// HistorySink records command lifecycle rows.
type HistorySink struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewHistorySink constructs a sink over the pool.
func NewHistorySink(pool *pgxpool.Pool, logger zerolog.Logger) (*HistorySink, error) {
	if pool == nil {
		return nil, errors.New("command history: nil pool")
	}
	return &HistorySink{pool: pool, logger: logger}, nil
}

// Attach subscribes the sink to command lifecycle events.
func (s *HistorySink) Attach(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[commandsevents.CommandAdmitted](), func(_ context.Context, event any) error {
		e := event.(commandsevents.CommandAdmitted)
		s.async(func(ctx context.Context) error {
			_, err := s.pool.Exec(ctx, `
INSERT INTO command_history (command_id, device_id, command_type, payload, operator, status, reason, created_at)
VALUES ($1,$2,$3,$4,$5,'admitted','',$6)
ON CONFLICT (command_id) DO NOTHING`,
				e.CommandID, e.DeviceID, e.CommandType, e.Payload, e.Operator, e.OccurredAt)
			return err
		}, e.CommandID)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[commandsevents.CommandRejected](), func(_ context.Context, event any) error {
		e := event.(commandsevents.CommandRejected)
		s.async(func(ctx context.Context) error {
			_, err := s.pool.Exec(ctx, `
INSERT INTO command_history (command_id, device_id, command_type, payload, operator, status, reason, created_at)
VALUES ($1,$2,$3,NULL,'','rejected',$4,$5)
ON CONFLICT (command_id) DO NOTHING`,
				e.CommandID, e.DeviceID, e.CommandType, e.Reason, e.OccurredAt)
			return err
		}, e.CommandID)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[commandsevents.CommandExecuted](), func(_ context.Context, event any) error {
		e := event.(commandsevents.CommandExecuted)
		s.async(func(ctx context.Context) error {
			_, err := s.pool.Exec(ctx, `
UPDATE command_history SET status = 'executed', completed_at = $2 WHERE command_id = $1`,
				e.CommandID, e.OccurredAt)
			return err
		}, e.CommandID)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[commandsevents.CommandFailed](), func(_ context.Context, event any) error {
		e := event.(commandsevents.CommandFailed)
		s.async(func(ctx context.Context) error {
			_, err := s.pool.Exec(ctx, `
UPDATE command_history SET status = 'failed', error = $2, completed_at = $3 WHERE command_id = $1`,
				e.CommandID, e.Error, e.OccurredAt)
			return err
		}, e.CommandID)
		return nil
	})
}

func (s *HistorySink) async(fn func(ctx context.Context) error, commandID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn().Err(err).Str("command_id", commandID).Msg("command history write failed")
		}
	}()
}
