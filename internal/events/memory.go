package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps fact events in memory, append order preserved.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records one event.
func (s *MemoryStore) Append(_ context.Context, event Event) error {
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
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// List returns events matching the filters, oldest first.
func (s *MemoryStore) List(_ context.Context, deviceID, eventType string, from, to time.Time, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0)
	for _, event := range s.events {
		if deviceID != "" && event.DeviceID != deviceID {
			continue
		}
		if eventType != "" && event.EventType != eventType {
			continue
		}
		if !from.IsZero() && event.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && event.OccurredAt.After(to) {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
