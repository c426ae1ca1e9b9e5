package application

import (
	"context"
	"errors"
	"testing"
	"time"

	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/alarms/infrastructure/memory"
	"gse-control/internal/telemetry/detection"
	telemetry "gse-control/internal/telemetry/domain"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type captureBus struct {
	events []any
}

func (b *captureBus) Publish(_ context.Context, event any) error {
	b.events = append(b.events, event)
	return nil
}

func newManager(t *testing.T, opts ...Option) (*Manager, *memory.Repository, *captureBus) {
	t.Helper()
	repo := memory.NewRepository()
	bus := &captureBus{}
	opts = append([]Option{WithPublisher(bus)}, opts...)
	m, err := NewManager(repo, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, repo, bus
}

func point(device, parameter string, value float64, at time.Time) telemetry.Point {
	return telemetry.Point{
		DeviceID:  device,
		Parameter: parameter,
		Timestamp: at,
		Value:     value,
		Status:    telemetry.PointStatusNominal,
	}
}

func highVerdict(severity alarms.Severity, threshold float64) detection.Verdict {
	return detection.Verdict{
		Anomaly:   true,
		Type:      alarms.TypeThresholdHigh,
		Severity:  severity,
		Threshold: threshold,
	}
}

func TestApplyVerdictTriggersAlarm(t *testing.T) {
	m, _, bus := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 40, at), highVerdict(alarms.SeverityFault, 32)); err != nil {
		t.Fatalf("ApplyVerdict: %v", err)
	}

	active, err := m.Active(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active alarms = %d, want 1", len(active))
	}
	alarm := active[0]
	if alarm.Status != alarms.StatusTriggered {
		t.Fatalf("status = %q, want %q", alarm.Status, alarms.StatusTriggered)
	}
	if alarm.Type != alarms.TypeThresholdHigh || alarm.Severity != alarms.SeverityFault {
		t.Fatalf("unexpected alarm classification: %+v", alarm)
	}
	if alarm.ActualValue != 40 || alarm.Threshold != 32 {
		t.Fatalf("unexpected alarm values: %+v", alarm)
	}
	if !alarm.TriggeredAt.Equal(at) {
		t.Fatalf("triggered at = %v, want %v", alarm.TriggeredAt, at)
	}
	if len(bus.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(bus.events))
	}
	if _, ok := bus.events[0].(AlarmRaised); !ok {
		t.Fatalf("event = %T, want AlarmRaised", bus.events[0])
	}
}

func TestApplyVerdictUpdatesActiveTupleInPlace(t *testing.T) {
	m, _, bus := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 33, at), highVerdict(alarms.SeverityWarning, 32)); err != nil {
		t.Fatalf("first verdict: %v", err)
	}
	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 41, at.Add(time.Second)), highVerdict(alarms.SeverityFault, 32)); err != nil {
		t.Fatalf("second verdict: %v", err)
	}

	active, err := m.Active(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active alarms = %d, want 1", len(active))
	}
	alarm := active[0]
	if alarm.ActualValue != 41 {
		t.Fatalf("actual value = %v, want 41", alarm.ActualValue)
	}
	if alarm.Severity != alarms.SeverityFault {
		t.Fatalf("severity = %v, want fault after escalation", alarm.Severity)
	}
	if !alarm.TriggeredAt.Equal(at) {
		t.Fatalf("re-violation must keep original trigger time, got %v", alarm.TriggeredAt)
	}
	if len(bus.events) != 1 {
		t.Fatalf("re-violation must not publish a second raise, got %d events", len(bus.events))
	}
}

func TestApplyVerdictDistinctTypesCoexist(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 33, at), highVerdict(alarms.SeverityWarning, 32)); err != nil {
		t.Fatalf("threshold verdict: %v", err)
	}
	statistical := detection.Verdict{
		Anomaly:   true,
		Type:      alarms.TypeStatisticalAnomaly,
		Severity:  alarms.SeverityWarning,
		Threshold: 30.5,
	}
	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 33, at.Add(time.Second)), statistical); err != nil {
		t.Fatalf("statistical verdict: %v", err)
	}

	active, err := m.Active(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active alarms = %d, want 2 distinct types", len(active))
	}
}

func TestAutoClearAfterConsecutiveNormals(t *testing.T) {
	m, _, bus := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 40, at), highVerdict(alarms.SeverityFault, 32)); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	for i := 1; i <= DefaultClearHysteresis; i++ {
		sample := point("GPU-001", "voltage", 28, at.Add(time.Duration(i)*time.Second))
		if err := m.ApplyVerdict(ctx, sample, detection.Verdict{}); err != nil {
			t.Fatalf("normal sample %d: %v", i, err)
		}
		active, err := m.Active(ctx, "GPU-001")
		if err != nil {
			t.Fatalf("Active: %v", err)
		}
		if i < DefaultClearHysteresis && len(active) != 1 {
			t.Fatalf("alarm cleared after %d samples, want %d", i, DefaultClearHysteresis)
		}
		if i == DefaultClearHysteresis && len(active) != 0 {
			t.Fatalf("alarm still active after %d normal samples", i)
		}
	}

	history, err := m.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d alarms, want 1", len(history))
	}
	cleared := history[0]
	if cleared.Status != alarms.StatusCleared {
		t.Fatalf("status = %q, want cleared", cleared.Status)
	}
	want := 5 * time.Second
	if cleared.Duration != want {
		t.Fatalf("duration = %v, want %v", cleared.Duration, want)
	}
	last := bus.events[len(bus.events)-1]
	if _, ok := last.(AlarmCleared); !ok {
		t.Fatalf("last event = %T, want AlarmCleared", last)
	}
}

func TestAnomalyResetsClearStreak(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 40, at), highVerdict(alarms.SeverityFault, 32)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 28, at.Add(time.Duration(i)*time.Second)), detection.Verdict{}); err != nil {
			t.Fatalf("normal sample %d: %v", i, err)
		}
	}
	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 40, at.Add(5*time.Second)), highVerdict(alarms.SeverityFault, 32)); err != nil {
		t.Fatalf("re-violation: %v", err)
	}
	for i := 6; i <= 9; i++ {
		if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 28, at.Add(time.Duration(i)*time.Second)), detection.Verdict{}); err != nil {
			t.Fatalf("normal sample %d: %v", i, err)
		}
	}

	active, err := m.Active(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("streak must restart after re-violation; active = %d", len(active))
	}

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 28, at.Add(10*time.Second)), detection.Verdict{}); err != nil {
		t.Fatalf("fifth normal sample: %v", err)
	}
	active, err = m.Active(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("alarm should clear after full streak, active = %d", len(active))
	}
}

func TestAcknowledge(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)}
	m, _, bus := newManager(t, WithClock(clock))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("CRYO-001", "pressure", 95, at), highVerdict(alarms.SeverityFault, 80)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	active, err := m.Active(ctx, "CRYO-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	id := active[0].ID

	acked, err := m.Acknowledge(ctx, id, "operator-7")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if acked.Status != alarms.StatusAcknowledged {
		t.Fatalf("status = %q, want acknowledged", acked.Status)
	}
	if acked.AckedBy != "operator-7" || !acked.AckedAt.Equal(clock.now) {
		t.Fatalf("unexpected ack fields: %+v", acked)
	}

	// Acknowledged alarms stay active.
	active, err = m.Active(ctx, "CRYO-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("acknowledged alarm must remain active, got %d", len(active))
	}

	again, err := m.Acknowledge(ctx, id, "operator-8")
	if err != nil {
		t.Fatalf("second Acknowledge: %v", err)
	}
	if again.AckedBy != "operator-7" {
		t.Fatalf("acknowledge must be idempotent, acked by %q", again.AckedBy)
	}

	if _, err := m.Acknowledge(ctx, "alm-missing", "operator-7"); !errors.Is(err, alarms.ErrNotFound) {
		t.Fatalf("unknown id error = %v, want ErrNotFound", err)
	}

	var acks int
	for _, evt := range bus.events {
		if _, ok := evt.(AlarmAcknowledged); ok {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("acknowledged events = %d, want 1", acks)
	}
}

func TestAcknowledgedAlarmStillAutoClears(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := m.ApplyVerdict(ctx, point("GPU-001", "current", 130, at), highVerdict(alarms.SeverityFault, 110)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	active, _ := m.Active(ctx, "GPU-001")
	if _, err := m.Acknowledge(ctx, active[0].ID, "operator-1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	for i := 1; i <= DefaultClearHysteresis; i++ {
		if err := m.ApplyVerdict(ctx, point("GPU-001", "current", 50, at.Add(time.Duration(i)*time.Second)), detection.Verdict{}); err != nil {
			t.Fatalf("normal sample %d: %v", i, err)
		}
	}

	active, err := m.Active(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("acknowledged alarm must still auto-clear, active = %d", len(active))
	}
}

func TestHighestActiveSeverity(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sev, err := m.HighestActiveSeverity(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("HighestActiveSeverity: %v", err)
	}
	if sev != alarms.SeverityNominal {
		t.Fatalf("severity with no alarms = %v, want nominal", sev)
	}

	if err := m.ApplyVerdict(ctx, point("GPU-001", "voltage", 33, at), highVerdict(alarms.SeverityWarning, 32)); err != nil {
		t.Fatalf("warning verdict: %v", err)
	}
	if err := m.ApplyVerdict(ctx, point("GPU-001", "current", 130, at), highVerdict(alarms.SeverityFault, 110)); err != nil {
		t.Fatalf("fault verdict: %v", err)
	}

	sev, err = m.HighestActiveSeverity(ctx, "GPU-001")
	if err != nil {
		t.Fatalf("HighestActiveSeverity: %v", err)
	}
	if sev != alarms.SeverityFault {
		t.Fatalf("severity = %v, want fault", sev)
	}
}
