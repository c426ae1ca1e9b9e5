package application

import (
	"encoding/json"

	"gse-control/internal/catalog"
	commands "gse-control/internal/commands/domain"
	devices "gse-control/internal/devices/domain"
)

// Decision is the admission outcome for one command.
type Decision struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
}

func admit() Decision { return Decision{Admitted: true} }

func reject(reason string) Decision { return Decision{Reason: reason} }

// Validator runs the declarative admission chain: command lookup, priority
// bypass, shutdown gate, typed parameter decoding, then the interlock
// predicate. The first failing step rejects with its reason.
type Validator struct {
	catalog *catalog.Catalog
}

// NewValidator constructs a validator over the device catalog.
func NewValidator(cat *catalog.Catalog) *Validator {
	return &Validator{catalog: cat}
}

// Validate decides admission for a command against the device's current
// mode, status, and latest telemetry. It never mutates state.
func (v *Validator) Validate(deviceType catalog.DeviceType, commandType string, payload json.RawMessage, snap catalog.Snapshot) Decision {
	spec, ok := v.catalog.CommandSpec(deviceType, commandType)
	if !ok {
		return reject("unsupported command " + commandType + " for device type " + string(deviceType))
	}

	// Emergency stop is never blocked, not by mode, params, or interlocks.
	if spec.Class == catalog.ClassPriority {
		return admit()
	}

	if snap.Mode == string(devices.ModeEmergencyShutdown) && spec.Class != catalog.ClassRecovery {
		return reject("device is in emergency shutdown; only recovery commands are admitted")
	}

	if _, err := commands.DecodeParams(commandType, payload); err != nil {
		return reject(err.Error())
	}

	if spec.Interlock != nil {
		if ok, reason := spec.Interlock(snap); !ok {
			return reject(reason)
		}
	}
	return admit()
}
