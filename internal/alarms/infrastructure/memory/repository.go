package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	alarms "gse-control/internal/alarms/domain"
)

// Repository is the in-memory alarm store. It is the authoritative store
// for the core; durable history lives in downstream sinks.
type Repository struct {
	mu     sync.RWMutex
	byID   map[string]alarms.Alarm
	active map[tupleKey]string
}

type tupleKey struct {
	deviceID  string
	parameter string
	alarmType alarms.Type
}

// NewRepository constructs an empty store.
func NewRepository() *Repository {
	return &Repository{
		byID:   make(map[string]alarms.Alarm),
		active: make(map[tupleKey]string),
	}
}

// Create inserts a new alarm and records it as the tuple's active alarm.
func (r *Repository) Create(ctx context.Context, alarm *alarms.Alarm) error {
	_ = ctx
	if alarm == nil {
		return errors.New("alarm repo: nil alarm")
	}
	if alarm.ID == "" {
		return errors.New("alarm repo: empty id")
	}
	key := tupleKey{deviceID: alarm.DeviceID, parameter: alarm.Parameter, alarmType: alarm.Type}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[alarm.ID]; exists {
		return errors.New("alarm repo: duplicate id")
	}
	if _, exists := r.active[key]; exists && alarm.Active() {
		return errors.New("alarm repo: tuple already has an active alarm")
	}
	r.byID[alarm.ID] = *alarm
	if alarm.Active() {
		r.active[key] = alarm.ID
	}
	return nil
}

// Update replaces an existing alarm record.
func (r *Repository) Update(ctx context.Context, alarm *alarms.Alarm) error {
	_ = ctx
	if alarm == nil {
		return errors.New("alarm repo: nil alarm")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[alarm.ID]; !exists {
		return alarms.ErrNotFound
	}
	r.byID[alarm.ID] = *alarm
	key := tupleKey{deviceID: alarm.DeviceID, parameter: alarm.Parameter, alarmType: alarm.Type}
	if alarm.Active() {
		r.active[key] = alarm.ID
	} else if r.active[key] == alarm.ID {
		delete(r.active, key)
	}
	return nil
}

// GetByID loads an alarm by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*alarms.Alarm, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	alarm, ok := r.byID[id]
	if !ok {
		return nil, alarms.ErrNotFound
	}
	return &alarm, nil
}

// FindActive returns the active alarm for a tuple, or nil.
func (r *Repository) FindActive(ctx context.Context, deviceID, parameter string, alarmType alarms.Type) (*alarms.Alarm, error) {
	_ = ctx
	key := tupleKey{deviceID: deviceID, parameter: parameter, alarmType: alarmType}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.active[key]
	if !ok {
		return nil, nil
	}
	alarm := r.byID[id]
	return &alarm, nil
}

// ListActive returns uncleared alarms ordered by triggered_at ascending.
func (r *Repository) ListActive(ctx context.Context, deviceID string) ([]alarms.Alarm, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]alarms.Alarm, 0, len(r.active))
	for _, id := range r.active {
		alarm := r.byID[id]
		if deviceID != "" && alarm.DeviceID != deviceID {
			continue
		}
		result = append(result, alarm)
	}
	r.mu.RUnlock()
	sortByTriggeredAt(result)
	return result, nil
}

// ListActiveByPair returns uncleared alarms for one (device, parameter).
func (r *Repository) ListActiveByPair(ctx context.Context, deviceID, parameter string) ([]alarms.Alarm, error) {
	_ = ctx
	r.mu.RLock()
	var result []alarms.Alarm
	for key, id := range r.active {
		if key.deviceID != deviceID || key.parameter != parameter {
			continue
		}
		result = append(result, r.byID[id])
	}
	r.mu.RUnlock()
	sortByTriggeredAt(result)
	return result, nil
}

// ListAll returns every recorded alarm, triggered_at ascending.
func (r *Repository) ListAll(ctx context.Context) ([]alarms.Alarm, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]alarms.Alarm, 0, len(r.byID))
	for _, alarm := range r.byID {
		result = append(result, alarm)
	}
	r.mu.RUnlock()
	sortByTriggeredAt(result)
	return result, nil
}

func sortByTriggeredAt(list []alarms.Alarm) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].TriggeredAt.Equal(list[j].TriggeredAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].TriggeredAt.Before(list[j].TriggeredAt)
	})
}
