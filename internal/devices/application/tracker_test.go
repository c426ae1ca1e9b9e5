package application

import (
	"context"
	"errors"
	"testing"

	alarms "gse-control/internal/alarms/domain"
	devices "gse-control/internal/devices/domain"
)

func TestGetDefaultsToStandbyNominal(t *testing.T) {
	tracker := NewTracker()
	state := tracker.Get("GPU-001")
	if state.Mode != devices.ModeStandby || state.Status != devices.StatusNominal {
		t.Fatalf("default state = %s/%s, want STANDBY/NOMINAL", state.Mode, state.Status)
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	tracker := NewTracker()
	if _, err := tracker.SetMode(context.Background(), "GPU-001", devices.Mode("TURBO")); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}

func TestEmergencyShutdownPinsStatus(t *testing.T) {
	tracker := NewTracker()
	ctx := context.Background()

	state, err := tracker.SetMode(ctx, "GPU-001", devices.ModeEmergencyShutdown)
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if state.Status != devices.StatusShutdown {
		t.Fatalf("status = %s, want SHUTDOWN", state.Status)
	}

	// Alarm escalation must not override the pinned status.
	state = tracker.ApplyAlarmSeverity(ctx, "GPU-001", alarms.SeverityFault)
	if state.Status != devices.StatusShutdown {
		t.Fatalf("status during shutdown = %s, want SHUTDOWN", state.Status)
	}
}

func TestRecoveryRestoresNominal(t *testing.T) {
	tracker := NewTracker()
	ctx := context.Background()

	if _, err := tracker.SetMode(ctx, "CRYO-001", devices.ModeEmergencyShutdown); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	state, err := tracker.SetMode(ctx, "CRYO-001", devices.ModeStandby)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if state.Mode != devices.ModeStandby || state.Status != devices.StatusNominal {
		t.Fatalf("recovered state = %s/%s, want STANDBY/NOMINAL", state.Mode, state.Status)
	}
}

func TestApplyAlarmSeverityEscalation(t *testing.T) {
	tracker := NewTracker()
	ctx := context.Background()

	cases := []struct {
		severity alarms.Severity
		want     devices.Status
	}{
		{alarms.SeverityNominal, devices.StatusNominal},
		{alarms.SeverityWarning, devices.StatusWarning},
		{alarms.SeverityFault, devices.StatusFault},
		{alarms.SeverityCritical, devices.StatusFault},
		{alarms.SeverityNominal, devices.StatusNominal},
	}
	for _, tc := range cases {
		state := tracker.ApplyAlarmSeverity(ctx, "GPU-001", tc.severity)
		if state.Status != tc.want {
			t.Fatalf("severity %v -> status %s, want %s", tc.severity, state.Status, tc.want)
		}
	}
}

func TestStateChangePublishesEvent(t *testing.T) {
	bus := &captureBus{}
	tracker := NewTracker(WithPublisher(bus))
	ctx := context.Background()

	if _, err := tracker.SetMode(ctx, "GPU-001", devices.ModeActive); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	tracker.ApplyAlarmSeverity(ctx, "GPU-001", alarms.SeverityWarning)
	// Unchanged status must not re-publish.
	tracker.ApplyAlarmSeverity(ctx, "GPU-001", alarms.SeverityWarning)

	if len(bus.events) != 2 {
		t.Fatalf("published events = %d, want 2", len(bus.events))
	}
	evt, ok := bus.events[1].(DeviceStateChanged)
	if !ok {
		t.Fatalf("event = %T, want DeviceStateChanged", bus.events[1])
	}
	if evt.State.Status != devices.StatusWarning {
		t.Fatalf("event status = %s, want WARNING", evt.State.Status)
	}
}

type captureBus struct {
	events []any
}

func (b *captureBus) Publish(_ context.Context, event any) error {
	b.events = append(b.events, event)
	return nil
}
