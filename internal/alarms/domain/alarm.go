package alarms

import "time"

// Severity is the ordered alarm classification used for escalation and
// display priority.
type Severity int

const (
	SeverityNominal Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityFault
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityNominal:  "NOMINAL",
	SeverityInfo:     "INFO",
	SeverityWarning:  "WARNING",
	SeverityFault:    "FAULT",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON encodes the severity as its display name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ParseSeverity maps a display name back to its severity; unknown names
// parse as NOMINAL.
func ParseSeverity(name string) Severity {
	for severity, n := range severityNames {
		if n == name {
			return severity
		}
	}
	return SeverityNominal
}

// Type classifies what triggered an alarm.
type Type string

const (
	TypeThresholdHigh      Type = "THRESHOLD_HIGH"
	TypeThresholdLow       Type = "THRESHOLD_LOW"
	TypeStatisticalAnomaly Type = "STATISTICAL_ANOMALY"
	TypeDeviceFault        Type = "DEVICE_FAULT"
)

// Lifecycle statuses. Cleared is terminal; a fresh violation after clearing
// starts a new alarm with a new identity.
const (
	StatusTriggered    = "triggered"
	StatusAcknowledged = "acknowledged"
	StatusCleared      = "cleared"
)

// Alarm is one alarm instance. At most one active (uncleared) alarm exists
// per (device, parameter, type) tuple.
type Alarm struct {
	ID          string        `json:"alarm_id"`
	DeviceID    string        `json:"device_id"`
	Parameter   string        `json:"parameter_name"`
	Type        Type          `json:"alarm_type"`
	Severity    Severity      `json:"severity"`
	Threshold   float64       `json:"threshold_value"`
	ActualValue float64       `json:"actual_value"`
	Status      string        `json:"status"`
	TriggeredAt time.Time     `json:"triggered_at"`
	AckedBy     string        `json:"acknowledged_by,omitempty"`
	AckedAt     time.Time     `json:"acknowledged_at,omitempty"`
	ClearedAt   time.Time     `json:"cleared_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Active reports whether the alarm still counts for interlocks and status
// escalation. Acknowledgment does not deactivate an alarm.
func (a Alarm) Active() bool {
	return a.Status != StatusCleared
}

// Acknowledged reports whether an operator has acknowledged the alarm.
func (a Alarm) Acknowledged() bool {
	return !a.AckedAt.IsZero()
}
