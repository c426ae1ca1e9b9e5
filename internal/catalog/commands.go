package catalog

// CommandClass partitions commands by how the validator treats them.
type CommandClass int

const (
	// ClassNormal commands go through the full validation chain.
	ClassNormal CommandClass = iota
	// ClassPriority commands (emergency shutdown) are always admitted.
	ClassPriority
	// ClassRecovery commands are the only ones admitted while a device is
	// in emergency shutdown.
	ClassRecovery
)

// Snapshot is the view of a device an interlock predicate may inspect:
// current mode/status plus the latest telemetry value per parameter.
type Snapshot struct {
	Mode      string
	Status    string
	Telemetry map[string]float64
}

// Predicate evaluates an interlock against a device snapshot. It returns
// false with a human-readable reason when the command must be rejected.
type Predicate func(s Snapshot) (ok bool, reason string)

// CommandSpec is reference data for one command type of a device type.
// Interlock is nil for commands that only close or de-energize equipment.
type CommandSpec struct {
	Type      string
	Class     CommandClass
	Interlock Predicate
}

// Built-in command tables. Interlocks follow the per-device-type safety
// rules: outputs only energize from ACTIVE mode with a non-faulted unit,
// and cryogenic valves only open with the line chilled below -100 degC.
func builtinCommandSpecs() map[DeviceType]map[string]CommandSpec {
	common := []CommandSpec{
		{Type: "set_mode", Class: ClassNormal},
		{Type: "emergency_shutdown", Class: ClassPriority},
		{Type: "recover", Class: ClassRecovery},
	}

	gpu := append([]CommandSpec{
		{Type: "enable_output", Class: ClassNormal, Interlock: outputEnableInterlock},
		{Type: "disable_output", Class: ClassNormal},
		{Type: "set_voltage", Class: ClassNormal},
		{Type: "set_current_limit", Class: ClassNormal},
	}, common...)

	cryo := append([]CommandSpec{
		{Type: "open_valve", Class: ClassNormal, Interlock: valveOpenInterlock},
		{Type: "close_valve", Class: ClassNormal},
	}, common...)

	return map[DeviceType]map[string]CommandSpec{
		DeviceTypeGroundPowerUnit: indexSpecs(gpu),
		DeviceTypeCryogenicLine:   indexSpecs(cryo),
	}
}

func indexSpecs(specs []CommandSpec) map[string]CommandSpec {
	m := make(map[string]CommandSpec, len(specs))
	for _, s := range specs {
		m[s.Type] = s
	}
	return m
}

func outputEnableInterlock(s Snapshot) (bool, string) {
	if s.Mode != "ACTIVE" {
		return false, "output enable requires ACTIVE mode"
	}
	if s.Status == "FAULT" {
		return false, "output enable blocked while unit is faulted"
	}
	return true, ""
}

func valveOpenInterlock(s Snapshot) (bool, string) {
	temp, known := s.Telemetry["temperature"]
	if !known {
		return false, "valve open blocked: line temperature unknown"
	}
	if temp >= -100 {
		return false, "valve open blocked: line temperature above -100 degC"
	}
	return true, ""
}
