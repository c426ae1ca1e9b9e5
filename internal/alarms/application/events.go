package application

import alarms "gse-control/internal/alarms/domain"

// AlarmRaised is published when a new alarm enters TRIGGERED.
type AlarmRaised struct {
	Alarm alarms.Alarm `json:"alarm"`
}

// AlarmCleared is published when an alarm reaches its terminal state.
type AlarmCleared struct {
	Alarm alarms.Alarm `json:"alarm"`
}

// AlarmAcknowledged is published when an operator acknowledges an alarm.
type AlarmAcknowledged struct {
	Alarm alarms.Alarm `json:"alarm"`
}
