package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Typed parameter payloads for the command set. Decoding rejects unknown
// fields, missing required fields, and out-of-range values before any
// interlock runs.

// SetModeParams selects the target operating mode.
type SetModeParams struct {
	Mode string `json:"mode"`
}

// SetVoltageParams sets the ground power output voltage in volts.
type SetVoltageParams struct {
	Voltage float64 `json:"voltage"`
}

// SetCurrentLimitParams sets the output current limit in amps.
type SetCurrentLimitParams struct {
	Current float64 `json:"current"`
}

// OpenValveParams commands a valve position in percent open.
type OpenValveParams struct {
	Position float64 `json:"position"`
}

// Parameter bounds for command payload validation.
const (
	MinVoltage      = 20.0
	MaxVoltage      = 32.0
	MinCurrentLimit = 0.0
	MaxCurrentLimit = 150.0
	MinValvePos     = 0.0
	MaxValvePos     = 100.0
)

var validModes = map[string]bool{
	"STANDBY":            true,
	"ACTIVE":             true,
	"MAINTENANCE":        true,
	"EMERGENCY_SHUTDOWN": true,
}

// DecodeParams validates a payload against the command type's parameter
// schema. Commands without parameters accept an empty or null payload only.
func DecodeParams(commandType string, payload json.RawMessage) (any, error) {
	switch commandType {
	case "set_mode":
		var p SetModeParams
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if !validModes[p.Mode] {
			return nil, fmt.Errorf("commands: mode %q is not a valid operating mode", p.Mode)
		}
		return p, nil
	case "set_voltage":
		var p SetVoltageParams
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if p.Voltage < MinVoltage || p.Voltage > MaxVoltage {
			return nil, fmt.Errorf("commands: voltage %.2f outside [%.0f, %.0f]", p.Voltage, MinVoltage, MaxVoltage)
		}
		return p, nil
	case "set_current_limit":
		var p SetCurrentLimitParams
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if p.Current < MinCurrentLimit || p.Current > MaxCurrentLimit {
			return nil, fmt.Errorf("commands: current %.2f outside [%.0f, %.0f]", p.Current, MinCurrentLimit, MaxCurrentLimit)
		}
		return p, nil
	case "open_valve":
		var p OpenValveParams
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if p.Position < MinValvePos || p.Position > MaxValvePos {
			return nil, fmt.Errorf("commands: position %.2f outside [%.0f, %.0f]", p.Position, MinValvePos, MaxValvePos)
		}
		return p, nil
	case "enable_output", "disable_output", "close_valve", "emergency_shutdown", "recover":
		if !emptyPayload(payload) {
			return nil, fmt.Errorf("commands: %s takes no parameters", commandType)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("commands: unsupported command %q", commandType)
	}
}

func strictDecode(payload json.RawMessage, out any) error {
	if emptyPayload(payload) {
		return fmt.Errorf("commands: missing parameters")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("commands: invalid parameters: %w", err)
	}
	return nil
}

func emptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}
