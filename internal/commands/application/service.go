package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gse-control/internal/catalog"
	commandsevents "gse-control/internal/commands/application/events"
	commands "gse-control/internal/commands/domain"
	"gse-control/internal/eventing"
	"gse-control/internal/observability/metrics"
)

// SubmitRequest carries one command submission.
type SubmitRequest struct {
	DeviceID       string          `json:"device_id"`
	CommandType    string          `json:"command_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Operator       string          `json:"operator,omitempty"`
}

// Admission is returned to the submitter.
type Admission struct {
	CommandID string    `json:"command_id"`
	DeviceID  string    `json:"device_id"`
	Admitted  bool      `json:"admitted"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Dispatcher forwards admitted commands to device controllers.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd commands.Command) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service records command submissions, runs admission, and tracks
// execution results reported back by the devices.
type Service struct {
	repo           commands.Repository
	validator      *Validator
	publisher      *eventing.Publisher
	dispatcher     Dispatcher
	clock          Clock
	idempotencyTTL time.Duration
}

// ServiceOption customizes the command service.
type ServiceOption func(*Service)

// WithDispatcher assigns a dispatcher for admitted commands.
func WithDispatcher(d Dispatcher) ServiceOption {
	return func(s *Service) {
		s.dispatcher = d
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a command service.
func NewService(repo commands.Repository, validator *Validator, publisher *eventing.Publisher, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("commands: nil repo")
	}
	if validator == nil {
		return nil, errors.New("commands: nil validator")
	}
	if publisher == nil {
		return nil, errors.New("commands: nil publisher")
	}
	s := &Service{
		repo:           repo,
		validator:      validator,
		publisher:      publisher,
		clock:          systemClock{},
		idempotencyTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates a command against the device's current snapshot and
// records the outcome. Delivery is a separate step (Dispatch) so callers
// can release device locks before any controller I/O happens.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, deviceType catalog.DeviceType, snap catalog.Snapshot) (*Admission, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	// Dedup only on caller-supplied keys: an interlock rejection must be
	// retryable once the blocking condition clears.
	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, req.IdempotencyKey, now.Add(-s.idempotencyTTL))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return admissionFrom(existing), nil
		}
	}

	decision := s.validator.Validate(deviceType, req.CommandType, req.Payload, snap)

	cmd := &commands.Command{
		CommandID:      "cmd-" + buildShortID(req.DeviceID+req.CommandType+now.Format(time.RFC3339Nano)),
		DeviceID:       req.DeviceID,
		CommandType:    req.CommandType,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		Operator:       req.Operator,
		Status:         commands.StatusAdmitted,
		CreatedAt:      now,
	}
	if !decision.Admitted {
		cmd.Status = commands.StatusRejected
		cmd.Reason = decision.Reason
	}
	if err := s.repo.Create(ctx, cmd); err != nil {
		return nil, err
	}

	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if decision.Admitted {
		metrics.IncCommandDecision("admitted")
		event := commandsevents.CommandAdmitted{
			EventID:     eventID,
			CommandID:   cmd.CommandID,
			DeviceID:    cmd.DeviceID,
			CommandType: cmd.CommandType,
			Payload:     cmd.Payload,
			Operator:    cmd.Operator,
			OccurredAt:  now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			return nil, err
		}
	} else {
		metrics.IncCommandDecision("rejected")
		metrics.IncCommandRejection(rejectionClass(decision.Reason))
		event := commandsevents.CommandRejected{
			EventID:     eventID,
			CommandID:   cmd.CommandID,
			DeviceID:    cmd.DeviceID,
			CommandType: cmd.CommandType,
			Reason:      cmd.Reason,
			OccurredAt:  now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			return nil, err
		}
	}

	return admissionFrom(cmd), nil
}

// ReportResult records the execution outcome a device reported for an
// admitted command.
func (s *Service) ReportResult(ctx context.Context, commandID string, success bool, execError string) (*commands.Command, error) {
	if commandID == "" {
		return nil, errors.New("commands: command id required")
	}
	cmd, err := s.repo.GetByID(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if cmd.Terminal() {
		return cmd, nil
	}

	now := s.clock.Now().UTC()
	cmd.CompletedAt = now
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if success {
		cmd.Status = commands.StatusExecuted
		metrics.IncDispatchResult(metrics.DispatchResultExecuted)
		if err := s.repo.Update(ctx, cmd); err != nil {
			return nil, err
		}
		event := commandsevents.CommandExecuted{
			EventID:    eventID,
			CommandID:  cmd.CommandID,
			DeviceID:   cmd.DeviceID,
			OccurredAt: now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			return nil, err
		}
		return cmd, nil
	}

	cmd.Status = commands.StatusFailed
	cmd.Error = execError
	metrics.IncDispatchResult(metrics.DispatchResultFailed)
	if err := s.repo.Update(ctx, cmd); err != nil {
		return nil, err
	}
	event := commandsevents.CommandFailed{
		EventID:    eventID,
		CommandID:  cmd.CommandID,
		DeviceID:   cmd.DeviceID,
		Error:      execError,
		OccurredAt: now,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return nil, err
	}
	return cmd, nil
}

// List returns a device's commands, newest first; empty id selects all.
func (s *Service) List(ctx context.Context, deviceID string) ([]commands.Command, error) {
	return s.repo.ListByDevice(ctx, deviceID)
}

// Get returns one command by id.
func (s *Service) Get(ctx context.Context, commandID string) (*commands.Command, error) {
	if commandID == "" {
		return nil, errors.New("commands: command id required")
	}
	return s.repo.GetByID(ctx, commandID)
}

// Dispatch forwards an admitted command to the device controller and stamps
// delivery. A delivery failure terminates the command as failed so the
// record shows the command never reached the device. Already-delivered and
// non-admitted commands are a no-op.
func (s *Service) Dispatch(ctx context.Context, commandID string) error {
	if s.dispatcher == nil {
		return nil
	}
	cmd, err := s.repo.GetByID(ctx, commandID)
	if err != nil {
		return err
	}
	if cmd.Status != commands.StatusAdmitted || !cmd.DispatchedAt.IsZero() {
		return nil
	}
	cmd.DispatchedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, cmd); err != nil {
		return err
	}
	if err := s.dispatcher.Dispatch(ctx, *cmd); err != nil {
		if _, rerr := s.ReportResult(ctx, cmd.CommandID, false, "delivery failed: "+err.Error()); rerr != nil {
			return rerr
		}
		return err
	}
	return nil
}

func admissionFrom(cmd *commands.Command) *Admission {
	return &Admission{
		CommandID: cmd.CommandID,
		DeviceID:  cmd.DeviceID,
		Admitted:  cmd.Status != commands.StatusRejected,
		Reason:    cmd.Reason,
		Status:    cmd.Status,
		CreatedAt: cmd.CreatedAt,
	}
}

func validateSubmit(req SubmitRequest) error {
	if req.DeviceID == "" {
		return errors.New("commands: device_id required")
	}
	if req.CommandType == "" {
		return errors.New("commands: command_type required")
	}
	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		return errors.New("commands: invalid payload")
	}
	return nil
}

func rejectionClass(reason string) string {
	switch {
	case reason == "":
		return "unknown"
	case strings.Contains(reason, "unsupported command"):
		return "unsupported"
	case strings.Contains(reason, "emergency shutdown"):
		return "shutdown"
	case strings.Contains(reason, "blocked"), strings.Contains(reason, "requires"):
		return "interlock"
	default:
		return "params"
	}
}

func buildShortID(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:8])
}
