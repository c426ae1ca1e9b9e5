package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"gse-control/internal/eventing"
)

// Recorder consumes bus events and appends them to the operations log.
// Writes happen off the publishing goroutine so store latency never sits
// under a device lock.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder constructs a recorder over the store.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to the given event types.
func (r *Recorder) Attach(bus eventing.EventBus, eventTypes ...string) {
	for _, eventType := range eventTypes {
		bus.Subscribe(eventType, r.handle)
	}
}

func (r *Recorder) handle(ctx context.Context, event any) error {
	env, ok := eventing.EnvelopeFromContext(ctx)
	if !ok {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		env = eventing.Envelope{
			EventID:    eventing.NewEventID(),
			EventType:  eventing.EventType(event),
			OccurredAt: time.Now().UTC(),
			Payload:    payload,
		}
	}

	fact := Event{
		ID:            "fact-" + env.EventID,
		EventType:     env.EventType,
		DeviceID:      env.DeviceID,
		CorrelationID: env.CorrelationID,
		Payload:       env.Payload,
		OccurredAt:    env.OccurredAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.Append(ctx, fact); err != nil {
			r.logger.Warn().Err(err).Str("event_type", fact.EventType).Msg("operations log append failed")
		}
	}()
	return nil
}
