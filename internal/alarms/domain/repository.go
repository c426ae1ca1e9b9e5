package alarms

import "context"

// Repository is the authoritative alarm store. The core keeps it in memory;
// history sinks receive lifecycle events separately.
type Repository interface {
	Create(ctx context.Context, alarm *Alarm) error
	Update(ctx context.Context, alarm *Alarm) error
	GetByID(ctx context.Context, id string) (*Alarm, error)

	// FindActive returns the single active alarm for a tuple, or nil.
	FindActive(ctx context.Context, deviceID, parameter string, alarmType Type) (*Alarm, error)
	// ListActive returns uncleared alarms ordered by triggered_at ascending.
	// An empty deviceID selects all devices.
	ListActive(ctx context.Context, deviceID string) ([]Alarm, error)
	// ListActiveByPair returns uncleared alarms for one (device, parameter).
	ListActiveByPair(ctx context.Context, deviceID, parameter string) ([]Alarm, error)
	// ListAll returns every alarm ever recorded, triggered_at ascending.
	ListAll(ctx context.Context) ([]Alarm, error)
}
