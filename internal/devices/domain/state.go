// Package devices tracks operational mode and health status per device.
package devices

import "time"

// Mode is the commanded operating mode of a device.
type Mode string

// Operating modes.
const (
	ModeStandby           Mode = "STANDBY"
	ModeActive            Mode = "ACTIVE"
	ModeMaintenance       Mode = "MAINTENANCE"
	ModeEmergencyShutdown Mode = "EMERGENCY_SHUTDOWN"
)

// Valid reports whether the mode is one of the defined operating modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeStandby, ModeActive, ModeMaintenance, ModeEmergencyShutdown:
		return true
	default:
		return false
	}
}

// Status is the derived health of a device, escalated from its active alarms.
type Status string

// Health statuses.
const (
	StatusNominal  Status = "NOMINAL"
	StatusWarning  Status = "WARNING"
	StatusFault    Status = "FAULT"
	StatusShutdown Status = "SHUTDOWN"
)

// State is the current mode/status pair for one device.
type State struct {
	DeviceID  string    `json:"device_id"`
	Mode      Mode      `json:"mode"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShutDown reports whether the device is in emergency shutdown.
func (s State) ShutDown() bool {
	return s.Mode == ModeEmergencyShutdown
}
