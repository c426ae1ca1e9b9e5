package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	alarms "gse-control/internal/alarms/domain"
)

type stubAlarmReader struct {
	alarm *alarms.Alarm
}

func (s stubAlarmReader) GetByID(_ context.Context, _ string) (*alarms.Alarm, error) {
	return s.alarm, nil
}

func faultAlarm() *alarms.Alarm {
	return &alarms.Alarm{
		ID:          "alm-1",
		DeviceID:    "gpu-01",
		Parameter:   "voltage",
		Type:        alarms.TypeThresholdHigh,
		Severity:    alarms.SeverityFault,
		Threshold:   32,
		ActualValue: 36.5,
		Status:      alarms.StatusTriggered,
		TriggeredAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestWebhookChannelPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	alarm := faultAlarm()
	notifier, err := NewNotifier(stubAlarmReader{alarm: alarm}, channel, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.Notify(context.Background(), EventRaised, *alarm)

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		content := payload.Text.Content
		checks := []string{
			"[Alarm Triggered]",
			"Device: gpu-01",
			"Parameter: voltage",
			"Type: THRESHOLD_HIGH",
			"Severity: FAULT",
			"Value: 36.50",
			"Threshold: 32.00",
			"Triggered: 2026-03-01T08:00:00Z",
			"Current Status: triggered",
			"Suggestion:",
		}
		for _, expected := range checks {
			if !strings.Contains(content, expected) {
				t.Fatalf("expected content to include %q, got %s", expected, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

type recordingChannel struct {
	mu       sync.Mutex
	contents []string
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.mu.Lock()
	r.contents = append(r.contents, content)
	r.mu.Unlock()
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contents)
}

func (r *recordingChannel) Latest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.contents) == 0 {
		return ""
	}
	return r.contents[len(r.contents)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestNotifierCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	alarm := faultAlarm()

	notifier, err := NewNotifier(stubAlarmReader{alarm: alarm}, channel, nil, zerolog.Nop(),
		WithClock(clock),
		WithCooldown(10*time.Minute),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.Notify(context.Background(), EventRaised, *alarm)
	notifier.Notify(context.Background(), EventRaised, *alarm)
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during cooldown, got %d", got)
	}

	clock.Add(11 * time.Minute)
	notifier.Notify(context.Background(), EventRaised, *alarm)
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications after cooldown, got %d", got)
	}
}

func TestNotifierDedupeWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	alarm := faultAlarm()

	notifier, err := NewNotifier(stubAlarmReader{alarm: alarm}, channel, nil, zerolog.Nop(),
		WithClock(clock),
		WithDedupeWindow(30*time.Minute),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.Notify(context.Background(), EventRaised, *alarm)
	clock.Add(5 * time.Minute)
	notifier.Notify(context.Background(), EventRaised, *alarm)
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during dedupe window, got %d", got)
	}

	alarm.ActualValue = 38.2
	notifier.Notify(context.Background(), EventRaised, *alarm)
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected notification when content changes, got %d", got)
	}
}

func TestNotifierEscalation(t *testing.T) {
	channel := &recordingChannel{}
	alarm := faultAlarm()

	notifier, err := NewNotifier(stubAlarmReader{alarm: alarm}, channel, nil, zerolog.Nop(),
		WithEscalation(20*time.Millisecond),
		WithRequestTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), EventRaised, *alarm)

	deadline := time.After(500 * time.Millisecond)
	for channel.Count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected escalation notification, got %d", channel.Count())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if !strings.Contains(channel.Latest(), "Escalated") {
		t.Fatalf("expected escalated notification content, got %s", channel.Latest())
	}
}

func TestNotifierEscalationCancelledByAcknowledge(t *testing.T) {
	channel := &recordingChannel{}
	alarm := faultAlarm()

	notifier, err := NewNotifier(stubAlarmReader{alarm: alarm}, channel, nil, zerolog.Nop(),
		WithEscalation(30*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), EventRaised, *alarm)
	acked := *alarm
	acked.Status = alarms.StatusAcknowledged
	acked.AckedBy = "operator-7"
	acked.AckedAt = time.Now().UTC()
	notifier.Notify(context.Background(), EventAcknowledged, acked)

	time.Sleep(80 * time.Millisecond)
	// Raised plus acknowledged, but no escalation.
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
}
