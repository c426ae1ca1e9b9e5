package eventing

import "context"

// Publisher wraps the bus: every published event travels with an envelope
// in context so sinks can record identity and correlation.
type Publisher struct {
	bus EventBus
}

// NewPublisher constructs a publisher over the bus.
func NewPublisher(bus EventBus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish builds an envelope from context metadata and dispatches the event.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.bus == nil {
		return nil
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	return p.bus.Publish(WithEnvelope(ctx, env), event)
}

// Subscribe registers a handler for an event type.
func (p *Publisher) Subscribe(eventType string, handler EventHandler) {
	if p == nil || p.bus == nil {
		return
	}
	p.bus.Subscribe(eventType, handler)
}
