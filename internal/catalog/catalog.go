package catalog

import (
	"errors"
	"sync"
)

// DeviceType identifies a supported equipment variant. The set is closed;
// new variants require a parameter table and a command table below.
type DeviceType string

const (
	DeviceTypeGroundPowerUnit DeviceType = "ground_power_unit"
	DeviceTypeCryogenicLine   DeviceType = "cryogenic_line"
)

// Valid reports whether the device type is a known variant.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeGroundPowerUnit, DeviceTypeCryogenicLine:
		return true
	default:
		return false
	}
}

// Device is an equipment unit registered with the core.
type Device struct {
	ID        string     `json:"device_id"`
	Type      DeviceType `json:"device_type"`
	Subsystem string     `json:"subsystem,omitempty"`
	Location  string     `json:"location,omitempty"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("catalog: empty device id")
	}
	if !d.Type.Valid() {
		return errors.New("catalog: unknown device type")
	}
	return nil
}

// ParameterDef is immutable reference data for one telemetry parameter of a
// device type.
type ParameterDef struct {
	Name    string  `json:"parameter_name"`
	Unit    string  `json:"unit"`
	Min     float64 `json:"min_value"`
	Max     float64 `json:"max_value"`
	Nominal float64 `json:"nominal_value"`
}

// Range returns the width of the nominal operating band.
func (p ParameterDef) Range() float64 {
	return p.Max - p.Min
}

// Catalog holds registered devices plus per-type parameter and command
// reference data. Reference data is fixed at construction; device
// registration is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	devices map[string]Device
	params  map[DeviceType]map[string]ParameterDef
	specs   map[DeviceType]map[string]CommandSpec
}

// New constructs a catalog with the built-in reference data and the given
// devices.
func New(devices ...Device) (*Catalog, error) {
	c := &Catalog{
		devices: make(map[string]Device, len(devices)),
		params:  builtinParameters(),
		specs:   builtinCommandSpecs(),
	}
	for _, d := range devices {
		if err := c.Register(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds or replaces a device.
func (c *Catalog) Register(d Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.devices[d.ID] = d
	c.mu.Unlock()
	return nil
}

// Device looks up a registered device by id.
func (c *Catalog) Device(id string) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	return d, ok
}

// Devices returns all registered devices.
func (c *Catalog) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		result = append(result, d)
	}
	return result
}

// Parameter looks up a parameter definition by (device type, name).
func (c *Catalog) Parameter(t DeviceType, name string) (ParameterDef, bool) {
	defs, ok := c.params[t]
	if !ok {
		return ParameterDef{}, false
	}
	def, ok := defs[name]
	return def, ok
}

// CommandSpec looks up a command definition by (device type, command type).
func (c *Catalog) CommandSpec(t DeviceType, commandType string) (CommandSpec, bool) {
	specs, ok := c.specs[t]
	if !ok {
		return CommandSpec{}, false
	}
	spec, ok := specs[commandType]
	return spec, ok
}

func builtinParameters() map[DeviceType]map[string]ParameterDef {
	return map[DeviceType]map[string]ParameterDef{
		DeviceTypeGroundPowerUnit: {
			"voltage":     {Name: "voltage", Unit: "V", Min: 20, Max: 32, Nominal: 28},
			"current":     {Name: "current", Unit: "A", Min: 0, Max: 110, Nominal: 50},
			"power":       {Name: "power", Unit: "W", Min: 0, Max: 3600, Nominal: 1400},
			"temperature": {Name: "temperature", Unit: "degC", Min: 0, Max: 85, Nominal: 25},
		},
		DeviceTypeCryogenicLine: {
			"valve_position": {Name: "valve_position", Unit: "%", Min: 0, Max: 100, Nominal: 0},
			"pressure":       {Name: "pressure", Unit: "psi", Min: 5, Max: 80, Nominal: 14.7},
			"flow_rate":      {Name: "flow_rate", Unit: "L/min", Min: 0, Max: 500, Nominal: 0},
			"temperature":    {Name: "temperature", Unit: "degC", Min: -273, Max: -100, Nominal: -150},
			"liquid_level":   {Name: "liquid_level", Unit: "%", Min: 10, Max: 100, Nominal: 75},
		},
	}
}
