// Package notify pushes alarm lifecycle notifications to operator channels.
package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	alarmapp "gse-control/internal/alarms/application"
	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/eventing"
)

// Event kinds rendered into notifications.
const (
	EventRaised       = "raised"
	EventAcknowledged = "acknowledged"
	EventCleared      = "cleared"
	EventEscalated    = "escalated"
)

// AlarmReader loads alarm records for escalation checks.
type AlarmReader interface {
	GetByID(ctx context.Context, id string) (*alarms.Alarm, error)
}

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alarm events through a template and pushes them to a
// channel. Fault alarms left unacknowledged past the escalation delay get
// an extra escalated notification.
type Notifier struct {
	reader         AlarmReader
	channel        Channel
	template       *Template
	logger         zerolog.Logger
	escalation     time.Duration
	clock          Clock
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	sent   map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation configures the unacknowledged-fault escalation delay.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout overrides the default timeout for escalation checks.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// alarm and event kind.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alarm notifier.
func NewNotifier(reader AlarmReader, channel Channel, template *Template, logger zerolog.Logger, opts ...Option) (*Notifier, error) {
	if reader == nil {
		return nil, errors.New("alarm notifier: nil alarm reader")
	}
	if channel == nil {
		return nil, errors.New("alarm notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		reader:         reader,
		channel:        channel,
		template:       template,
		logger:         logger,
		clock:          systemClock{},
		timers:         make(map[string]*time.Timer),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Attach subscribes the notifier to alarm lifecycle events. Delivery runs
// off the publishing goroutine so channel latency never sits under a
// device lock.
func (n *Notifier) Attach(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[alarmapp.AlarmRaised](), func(_ context.Context, event any) error {
		if raised, ok := event.(alarmapp.AlarmRaised); ok {
			go n.deliver(EventRaised, raised.Alarm)
		}
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[alarmapp.AlarmAcknowledged](), func(_ context.Context, event any) error {
		if acked, ok := event.(alarmapp.AlarmAcknowledged); ok {
			go n.deliver(EventAcknowledged, acked.Alarm)
		}
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[alarmapp.AlarmCleared](), func(_ context.Context, event any) error {
		if cleared, ok := event.(alarmapp.AlarmCleared); ok {
			go n.deliver(EventCleared, cleared.Alarm)
		}
		return nil
	})
}

func (n *Notifier) deliver(kind string, alarm alarms.Alarm) {
	ctx, cancel := context.WithTimeout(context.Background(), n.requestTimeout)
	defer cancel()
	n.Notify(ctx, kind, alarm)
}

// Notify renders and sends one alarm event, honoring cooldown and dedupe.
func (n *Notifier) Notify(ctx context.Context, kind string, alarm alarms.Alarm) {
	if n == nil || n.channel == nil {
		return
	}
	n.dispatch(ctx, kind, alarm)

	switch kind {
	case EventRaised:
		n.scheduleEscalation(alarm)
	case EventAcknowledged, EventCleared:
		n.cancelEscalation(alarm.ID)
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[string]*time.Timer)
	n.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, kind string, alarm alarms.Alarm) {
	content, err := n.template.Render(buildTemplateData(kind, alarm))
	if err != nil {
		n.logger.Warn().Err(err).Str("alarm_id", alarm.ID).Msg("notification render failed")
		return
	}
	if !n.shouldSend(alarm.ID, kind, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		n.logger.Warn().Err(err).Str("alarm_id", alarm.ID).Str("event", kind).Msg("notification send failed")
		return
	}
	n.markSent(alarm.ID, kind, content)
}

func (n *Notifier) scheduleEscalation(alarm alarms.Alarm) {
	if n.escalation <= 0 || alarm.ID == "" || alarm.Severity < alarms.SeverityFault {
		return
	}
	n.mu.Lock()
	if existing, ok := n.timers[alarm.ID]; ok && existing != nil {
		existing.Stop()
	}
	n.timers[alarm.ID] = time.AfterFunc(n.escalation, func() {
		n.runEscalation(alarm.ID)
	})
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(alarmID string) {
	if alarmID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[alarmID]
	delete(n.timers, alarmID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (n *Notifier) runEscalation(alarmID string) {
	n.mu.Lock()
	delete(n.timers, alarmID)
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), n.requestTimeout)
	defer cancel()

	alarm, err := n.reader.GetByID(ctx, alarmID)
	if err != nil || alarm == nil {
		return
	}
	if alarm.Status != alarms.StatusTriggered {
		return
	}
	n.dispatch(ctx, EventEscalated, *alarm)
}

func buildTemplateData(kind string, alarm alarms.Alarm) TemplateData {
	return TemplateData{
		Device:      alarm.DeviceID,
		Parameter:   alarm.Parameter,
		AlarmType:   string(alarm.Type),
		Severity:    alarm.Severity.String(),
		Value:       fmt.Sprintf("%.2f", alarm.ActualValue),
		Threshold:   fmt.Sprintf("%.2f", alarm.Threshold),
		TriggeredAt: alarm.TriggeredAt.UTC().Format(time.RFC3339),
		Status:      alarm.Status,
		Suggestion:  suggestionFor(alarm.Severity),
		Event:       kind,
		EventLabel:  eventLabel(kind),
	}
}

func eventLabel(kind string) string {
	switch kind {
	case EventRaised:
		return "Triggered"
	case EventAcknowledged:
		return "Acknowledged"
	case EventCleared:
		return "Cleared"
	case EventEscalated:
		return "Escalated"
	default:
		return kind
	}
}

func suggestionFor(severity alarms.Severity) string {
	switch {
	case severity >= alarms.SeverityFault:
		return "Investigate immediately and mitigate risk."
	case severity >= alarms.SeverityWarning:
		return "Verify the condition and take action if needed."
	default:
		return "Monitor the alarm condition."
	}
}

func (n *Notifier) shouldSend(alarmID, kind, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alarmID, kind)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alarmID, kind, content string) {
	key := notificationKey(alarmID, kind)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alarmID, kind string) string {
	return alarmID + "|" + kind
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}
