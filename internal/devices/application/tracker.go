package application

import (
	"context"
	"errors"
	"sync"
	"time"

	alarms "gse-control/internal/alarms/domain"
	devices "gse-control/internal/devices/domain"
)

// ErrUnknownMode rejects mode transitions to values outside the mode set.
var ErrUnknownMode = errors.New("devices: unknown mode")

// Publisher posts state change events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DeviceStateChanged is published whenever a device's mode or status moves.
type DeviceStateChanged struct {
	State devices.State `json:"state"`
}

// Tracker holds the authoritative mode/status pair for every device.
// Devices it has never seen report STANDBY/NOMINAL.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]devices.State

	bus   Publisher
	clock Clock
}

// Option customizes the tracker.
type Option func(*Tracker)

// WithPublisher assigns an event publisher.
func WithPublisher(bus Publisher) Option {
	return func(t *Tracker) {
		t.bus = bus
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker constructs a device state tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		states: make(map[string]devices.State),
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns the device's current state, defaulting to STANDBY/NOMINAL.
func (t *Tracker) Get(deviceID string) devices.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stateLocked(deviceID)
}

func (t *Tracker) stateLocked(deviceID string) devices.State {
	if state, ok := t.states[deviceID]; ok {
		return state
	}
	return devices.State{
		DeviceID: deviceID,
		Mode:     devices.ModeStandby,
		Status:   devices.StatusNominal,
	}
}

// SetMode moves the device to the given mode. Entering EMERGENCY_SHUTDOWN
// pins status to SHUTDOWN; leaving it restores NOMINAL until the next alarm
// escalation runs.
func (t *Tracker) SetMode(ctx context.Context, deviceID string, mode devices.Mode) (devices.State, error) {
	if !mode.Valid() {
		return devices.State{}, ErrUnknownMode
	}

	t.mu.Lock()
	state := t.stateLocked(deviceID)
	wasShutdown := state.Mode == devices.ModeEmergencyShutdown
	state.Mode = mode
	switch {
	case mode == devices.ModeEmergencyShutdown:
		state.Status = devices.StatusShutdown
	case wasShutdown:
		state.Status = devices.StatusNominal
	}
	state.UpdatedAt = t.clock.Now().UTC()
	t.states[deviceID] = state
	t.mu.Unlock()

	t.publish(ctx, state)
	return state, nil
}

// ApplyAlarmSeverity recomputes device status from the highest active alarm
// severity. During emergency shutdown the pinned SHUTDOWN status wins.
func (t *Tracker) ApplyAlarmSeverity(ctx context.Context, deviceID string, highest alarms.Severity) devices.State {
	t.mu.Lock()
	state := t.stateLocked(deviceID)
	if state.Mode == devices.ModeEmergencyShutdown {
		t.mu.Unlock()
		return state
	}
	status := statusForSeverity(highest)
	if state.Status == status {
		t.mu.Unlock()
		return state
	}
	state.Status = status
	state.UpdatedAt = t.clock.Now().UTC()
	t.states[deviceID] = state
	t.mu.Unlock()

	t.publish(ctx, state)
	return state
}

// States returns a snapshot of every tracked device, for reporting.
func (t *Tracker) States() []devices.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]devices.State, 0, len(t.states))
	for _, state := range t.states {
		out = append(out, state)
	}
	return out
}

func (t *Tracker) publish(ctx context.Context, state devices.State) {
	if t.bus == nil {
		return
	}
	_ = t.bus.Publish(ctx, DeviceStateChanged{State: state})
}

func statusForSeverity(severity alarms.Severity) devices.Status {
	switch {
	case severity >= alarms.SeverityFault:
		return devices.StatusFault
	case severity >= alarms.SeverityWarning:
		return devices.StatusWarning
	default:
		return devices.StatusNominal
	}
}
