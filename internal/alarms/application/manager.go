package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/observability/metrics"
	"gse-control/internal/telemetry/detection"
	telemetry "gse-control/internal/telemetry/domain"
)

// DefaultClearHysteresis is how many consecutive in-bounds, within-sigma
// samples a (device, parameter) pair needs before its active alarms clear.
const DefaultClearHysteresis = 5

// Publisher posts lifecycle events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Manager owns the alarm set and applies detector verdicts to it:
// NONE -> TRIGGERED -> ACKNOWLEDGED -> CLEARED, with at most one active
// alarm per (device, parameter, alarm type) tuple.
type Manager struct {
	repo       alarms.Repository
	bus        Publisher
	clock      Clock
	clearAfter int

	mu      sync.Mutex
	streaks map[pairKey]int
}

type pairKey struct {
	deviceID  string
	parameter string
}

// Option customizes the manager.
type Option func(*Manager)

// WithPublisher assigns an event publisher.
func WithPublisher(bus Publisher) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithClearHysteresis overrides how many consecutive normal samples clear a
// pair's alarms.
func WithClearHysteresis(samples int) Option {
	return func(m *Manager) {
		if samples > 0 {
			m.clearAfter = samples
		}
	}
}

// NewManager constructs an alarm lifecycle manager.
func NewManager(repo alarms.Repository, opts ...Option) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("alarms: nil repository")
	}
	m := &Manager{
		repo:       repo,
		clock:      systemClock{},
		clearAfter: DefaultClearHysteresis,
		streaks:    make(map[pairKey]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ApplyVerdict feeds one detector verdict into the lifecycle. An anomaly
// triggers a new alarm or updates the tuple's active one in place; a normal
// sample advances the pair's clear streak and clears its alarms once the
// hysteresis is met.
func (m *Manager) ApplyVerdict(ctx context.Context, p telemetry.Point, v detection.Verdict) error {
	if m == nil {
		return errors.New("alarms: nil manager")
	}
	key := pairKey{deviceID: p.DeviceID, parameter: p.Parameter}

	if !v.Anomaly {
		m.mu.Lock()
		m.streaks[key]++
		reached := m.streaks[key] >= m.clearAfter
		if reached {
			m.streaks[key] = 0
		}
		m.mu.Unlock()
		if !reached {
			return nil
		}
		return m.clearPair(ctx, p.DeviceID, p.Parameter, p.Timestamp)
	}

	m.mu.Lock()
	m.streaks[key] = 0
	m.mu.Unlock()

	open, err := m.repo.FindActive(ctx, p.DeviceID, p.Parameter, v.Type)
	if err != nil {
		return err
	}
	if open != nil {
		// Same alarm, fresher reading: no new identity.
		open.ActualValue = p.Value
		open.Severity = v.Severity
		open.Threshold = v.Threshold
		return m.repo.Update(ctx, open)
	}

	triggeredAt := p.Timestamp
	if triggeredAt.IsZero() {
		triggeredAt = m.clock.Now()
	}
	alarm := &alarms.Alarm{
		ID:          buildAlarmID(p.DeviceID, p.Parameter, string(v.Type), triggeredAt),
		DeviceID:    p.DeviceID,
		Parameter:   p.Parameter,
		Type:        v.Type,
		Severity:    v.Severity,
		Threshold:   v.Threshold,
		ActualValue: p.Value,
		Status:      alarms.StatusTriggered,
		TriggeredAt: triggeredAt.UTC(),
	}
	if err := m.repo.Create(ctx, alarm); err != nil {
		return err
	}
	m.notify(ctx, "raised", AlarmRaised{Alarm: *alarm})
	return nil
}

func (m *Manager) clearPair(ctx context.Context, deviceID, parameter string, at time.Time) error {
	open, err := m.repo.ListActiveByPair(ctx, deviceID, parameter)
	if err != nil {
		return err
	}
	clearedAt := at
	if clearedAt.IsZero() {
		clearedAt = m.clock.Now()
	}
	clearedAt = clearedAt.UTC()
	for i := range open {
		alarm := open[i]
		if clearedAt.Before(alarm.TriggeredAt) {
			clearedAt = alarm.TriggeredAt
		}
		alarm.Status = alarms.StatusCleared
		alarm.ClearedAt = clearedAt
		alarm.Duration = clearedAt.Sub(alarm.TriggeredAt)
		if err := m.repo.Update(ctx, &alarm); err != nil {
			return err
		}
		m.notify(ctx, "cleared", AlarmCleared{Alarm: alarm})
	}
	return nil
}

// Acknowledge records an operator acknowledgment. It is idempotent and does
// not affect clearing eligibility.
func (m *Manager) Acknowledge(ctx context.Context, alarmID, operator string) (*alarms.Alarm, error) {
	if m == nil {
		return nil, errors.New("alarms: nil manager")
	}
	if alarmID == "" {
		return nil, errors.New("alarms: alarm id required")
	}
	alarm, err := m.repo.GetByID(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	if alarm.Acknowledged() {
		return alarm, nil
	}
	alarm.AckedBy = operator
	alarm.AckedAt = m.clock.Now().UTC()
	if alarm.Status == alarms.StatusTriggered {
		alarm.Status = alarms.StatusAcknowledged
	}
	if err := m.repo.Update(ctx, alarm); err != nil {
		return nil, err
	}
	m.notify(ctx, "acknowledged", AlarmAcknowledged{Alarm: *alarm})
	return alarm, nil
}

// Active returns uncleared alarms, oldest first; empty deviceID selects all.
func (m *Manager) Active(ctx context.Context, deviceID string) ([]alarms.Alarm, error) {
	if m == nil {
		return nil, errors.New("alarms: nil manager")
	}
	return m.repo.ListActive(ctx, deviceID)
}

// HighestActiveSeverity returns the highest severity among a device's
// active alarms, or SeverityNominal when none are active.
func (m *Manager) HighestActiveSeverity(ctx context.Context, deviceID string) (alarms.Severity, error) {
	active, err := m.repo.ListActive(ctx, deviceID)
	if err != nil {
		return alarms.SeverityNominal, err
	}
	highest := alarms.SeverityNominal
	for _, alarm := range active {
		if alarm.Severity > highest {
			highest = alarm.Severity
		}
	}
	return highest, nil
}

// History returns every recorded alarm, oldest first.
func (m *Manager) History(ctx context.Context) ([]alarms.Alarm, error) {
	if m == nil {
		return nil, errors.New("alarms: nil manager")
	}
	return m.repo.ListAll(ctx)
}

func (m *Manager) notify(ctx context.Context, eventType string, event any) {
	metrics.IncAlarmEvent(eventType)
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, event)
}

func buildAlarmID(deviceID, parameter, alarmType string, at time.Time) string {
	sum := sha1.Sum([]byte(deviceID + "|" + parameter + "|" + alarmType + "|" + at.Format(time.RFC3339Nano)))
	return "alm-" + hex.EncodeToString(sum[:8])
}
