// Package control wires the telemetry, alarm, device, and command layers
// behind one facade with per-device mutual exclusion.
package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	alarmapp "gse-control/internal/alarms/application"
	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/catalog"
	commandapp "gse-control/internal/commands/application"
	commands "gse-control/internal/commands/domain"
	deviceapp "gse-control/internal/devices/application"
	devices "gse-control/internal/devices/domain"
	"gse-control/internal/eventing"
	"gse-control/internal/observability/metrics"
	telemetryevents "gse-control/internal/telemetry/application/events"
	"gse-control/internal/telemetry/detection"
	telemetry "gse-control/internal/telemetry/domain"
	"gse-control/internal/telemetry/statistics"
)

// ErrUnknownCommand is returned when an execution result references an
// unknown command.
var ErrUnknownCommand = commands.ErrNotFound

// Core is the command and control facade. All read-decide-mutate paths for
// a device run under that device's lock.
type Core struct {
	catalog   *catalog.Catalog
	stats     *statistics.Tracker
	detector  detection.Detector
	alarms    *alarmapp.Manager
	devices   *deviceapp.Tracker
	commands  *commandapp.Service
	publisher *eventing.Publisher
	logger    zerolog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	latest map[string]map[string]float64
}

// Deps carries the collaborators the core orchestrates.
type Deps struct {
	Catalog   *catalog.Catalog
	Stats     *statistics.Tracker
	Detector  detection.Detector
	Alarms    *alarmapp.Manager
	Devices   *deviceapp.Tracker
	Commands  *commandapp.Service
	Publisher *eventing.Publisher
	Logger    zerolog.Logger
}

// New constructs the control core.
func New(deps Deps) (*Core, error) {
	if deps.Catalog == nil {
		return nil, errors.New("control: nil catalog")
	}
	if deps.Stats == nil {
		return nil, errors.New("control: nil statistics tracker")
	}
	if deps.Alarms == nil {
		return nil, errors.New("control: nil alarm manager")
	}
	if deps.Devices == nil {
		return nil, errors.New("control: nil device tracker")
	}
	if deps.Commands == nil {
		return nil, errors.New("control: nil command service")
	}
	return &Core{
		catalog:   deps.Catalog,
		stats:     deps.Stats,
		detector:  deps.Detector,
		alarms:    deps.Alarms,
		devices:   deps.Devices,
		commands:  deps.Commands,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		locks:     make(map[string]*sync.Mutex),
		latest:    make(map[string]map[string]float64),
	}, nil
}

func (c *Core) deviceLock(deviceID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[deviceID] = lock
	}
	return lock
}

// IngestResult summarizes what one point did to the device.
type IngestResult struct {
	Point        telemetry.Point `json:"point"`
	Anomalous    bool            `json:"anomalous"`
	AlarmType    alarms.Type     `json:"alarm_type,omitempty"`
	DeviceStatus devices.Status  `json:"device_status"`
}

// Ingest runs one point through validation, rolling statistics, detection,
// alarm lifecycle, and device status escalation.
func (c *Core) Ingest(ctx context.Context, p telemetry.Point) (IngestResult, error) {
	started := time.Now()
	result, err := c.ingest(ctx, p)
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		metrics.IncIngestError(ingestErrorReason(err))
		return result, err
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(started))
	return result, nil
}

func (c *Core) ingest(ctx context.Context, p telemetry.Point) (IngestResult, error) {
	if err := p.Validate(); err != nil {
		return IngestResult{}, err
	}
	device, ok := c.catalog.Device(p.DeviceID)
	if !ok {
		return IngestResult{}, telemetry.ErrUnknownDevice
	}
	def, ok := c.catalog.Parameter(device.Type, p.Parameter)
	if !ok {
		return IngestResult{}, telemetry.ErrUnknownParameter
	}

	lock := c.deviceLock(p.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	// Evaluate against the window as it stood before this sample, then
	// fold the sample in.
	stats := c.stats.Stats(p.DeviceID, p.Parameter)
	verdict := c.detector.Evaluate(p, def, stats)
	c.stats.Record(p.DeviceID, p.Parameter, p.Value)
	c.rememberLatest(p)

	if verdict.Anomaly {
		metrics.IncAnomaly(string(verdict.Type))
	}
	if err := c.alarms.ApplyVerdict(ctx, p, verdict); err != nil {
		return IngestResult{}, err
	}
	highest, err := c.alarms.HighestActiveSeverity(ctx, p.DeviceID)
	if err != nil {
		return IngestResult{}, err
	}
	state := c.devices.ApplyAlarmSeverity(ctx, p.DeviceID, highest)

	if active, err := c.alarms.Active(ctx, ""); err == nil {
		metrics.SetActiveAlarms(len(active))
	}
	c.publishTelemetry(ctx, p, verdict.Anomaly)

	return IngestResult{
		Point:        p,
		Anomalous:    verdict.Anomaly,
		AlarmType:    verdict.Type,
		DeviceStatus: state.Status,
	}, nil
}

// BatchItem is the per-point outcome of a batch ingest.
type BatchItem struct {
	Result IngestResult `json:"result"`
	Error  string       `json:"error,omitempty"`
}

// IngestBatch processes points independently; one bad point does not stop
// the rest.
func (c *Core) IngestBatch(ctx context.Context, points []telemetry.Point) []BatchItem {
	out := make([]BatchItem, 0, len(points))
	for _, p := range points {
		result, err := c.Ingest(ctx, p)
		item := BatchItem{Result: result}
		if err != nil {
			item.Error = err.Error()
		}
		out = append(out, item)
	}
	return out
}

// SubmitCommand validates and admits a command against the device's current
// state and latest telemetry. Delivery to the controller happens after the
// device lock is released so a slow controller cannot stall ingest or
// status escalation for the device.
func (c *Core) SubmitCommand(ctx context.Context, req commandapp.SubmitRequest) (*commandapp.Admission, error) {
	device, ok := c.catalog.Device(req.DeviceID)
	if !ok {
		return nil, telemetry.ErrUnknownDevice
	}
	admission, err := c.admitCommand(ctx, req, device)
	if err != nil {
		return nil, err
	}
	if admission.Admitted {
		go c.dispatchCommand(admission.CommandID)
	}
	return admission, nil
}

func (c *Core) admitCommand(ctx context.Context, req commandapp.SubmitRequest, device catalog.Device) (*commandapp.Admission, error) {
	lock := c.deviceLock(req.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	state := c.devices.Get(req.DeviceID)
	snap := catalog.Snapshot{
		Mode:      string(state.Mode),
		Status:    string(state.Status),
		Telemetry: c.latestTelemetry(req.DeviceID),
	}
	admission, err := c.commands.Submit(ctx, req, device.Type, snap)
	if err != nil {
		return nil, err
	}

	// Emergency stop takes effect at admission, not at execution report.
	if admission.Admitted && req.CommandType == "emergency_shutdown" {
		if _, err := c.devices.SetMode(ctx, req.DeviceID, devices.ModeEmergencyShutdown); err != nil {
			return nil, err
		}
	}
	return admission, nil
}

func (c *Core) dispatchCommand(commandID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.commands.Dispatch(ctx, commandID); err != nil {
		c.logger.Error().Err(err).Str("command_id", commandID).Msg("command dispatch failed")
	}
}

// ReportExecutionResult records a device's execution outcome and applies
// any mode effect of the completed command.
func (c *Core) ReportExecutionResult(ctx context.Context, commandID string, success bool, execError string) (*commands.Command, error) {
	cmd, err := c.commands.Get(ctx, commandID)
	if err != nil {
		return nil, err
	}

	lock := c.deviceLock(cmd.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	updated, err := c.commands.ReportResult(ctx, commandID, success, execError)
	if err != nil {
		return nil, err
	}
	if success {
		if err := c.applyModeEffect(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (c *Core) applyModeEffect(ctx context.Context, cmd *commands.Command) error {
	switch cmd.CommandType {
	case "set_mode":
		params, err := commands.DecodeParams(cmd.CommandType, cmd.Payload)
		if err != nil {
			return err
		}
		mode := devices.Mode(params.(commands.SetModeParams).Mode)
		if _, err := c.devices.SetMode(ctx, cmd.DeviceID, mode); err != nil {
			return err
		}
	case "recover":
		if _, err := c.devices.SetMode(ctx, cmd.DeviceID, devices.ModeStandby); err != nil {
			return err
		}
		highest, err := c.alarms.HighestActiveSeverity(ctx, cmd.DeviceID)
		if err != nil {
			return err
		}
		c.devices.ApplyAlarmSeverity(ctx, cmd.DeviceID, highest)
	}
	return nil
}

// AcknowledgeAlarm records an operator acknowledgment.
func (c *Core) AcknowledgeAlarm(ctx context.Context, alarmID, operator string) (*alarms.Alarm, error) {
	return c.alarms.Acknowledge(ctx, alarmID, operator)
}

// ActiveAlarms returns uncleared alarms, oldest first; empty deviceID
// selects all devices.
func (c *Core) ActiveAlarms(ctx context.Context, deviceID string) ([]alarms.Alarm, error) {
	return c.alarms.Active(ctx, deviceID)
}

// DeviceState returns the device's current mode and status.
func (c *Core) DeviceState(deviceID string) (devices.State, error) {
	if _, ok := c.catalog.Device(deviceID); !ok {
		return devices.State{}, telemetry.ErrUnknownDevice
	}
	return c.devices.Get(deviceID), nil
}

// DeviceOverview pairs catalog identity with live state.
type DeviceOverview struct {
	Device catalog.Device `json:"device"`
	State  devices.State  `json:"state"`
}

// Devices lists every cataloged device with its current state.
func (c *Core) Devices() []DeviceOverview {
	list := c.catalog.Devices()
	out := make([]DeviceOverview, 0, len(list))
	for _, d := range list {
		out = append(out, DeviceOverview{Device: d, State: c.devices.Get(d.ID)})
	}
	return out
}

// LatestTelemetry returns the most recent value per parameter for a device.
func (c *Core) LatestTelemetry(deviceID string) map[string]float64 {
	lock := c.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()
	return c.latestTelemetry(deviceID)
}

func (c *Core) rememberLatest(p telemetry.Point) {
	values, ok := c.latest[p.DeviceID]
	if !ok {
		values = make(map[string]float64)
		c.latest[p.DeviceID] = values
	}
	values[p.Parameter] = p.Value
}

func (c *Core) latestTelemetry(deviceID string) map[string]float64 {
	values, ok := c.latest[deviceID]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func (c *Core) publishTelemetry(ctx context.Context, p telemetry.Point, anomalous bool) {
	if c.publisher == nil {
		return
	}
	event := telemetryevents.TelemetryReceived{
		Point:      p,
		DeviceID:   p.DeviceID,
		Anomalous:  anomalous,
		OccurredAt: p.Timestamp,
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn().Err(err).Str("device_id", p.DeviceID).Msg("telemetry event publish failed")
	}
}

func ingestErrorReason(err error) string {
	switch {
	case errors.Is(err, telemetry.ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(err, telemetry.ErrUnknownParameter):
		return "unknown_parameter"
	case errors.Is(err, telemetry.ErrBadTimestamp):
		return "bad_timestamp"
	default:
		return "internal"
	}
}
