package catalog

import "testing"

func TestRegisterRejectsUnknownType(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if err := c.Register(Device{ID: "X-1", Type: "toaster"}); err == nil {
		t.Fatalf("expected error for unknown device type")
	}
	if err := c.Register(Device{Type: DeviceTypeGroundPowerUnit}); err == nil {
		t.Fatalf("expected error for empty device id")
	}
}

func TestParameterLookup(t *testing.T) {
	c, err := New(Device{ID: "GPU-001", Type: DeviceTypeGroundPowerUnit})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	def, ok := c.Parameter(DeviceTypeGroundPowerUnit, "voltage")
	if !ok {
		t.Fatalf("expected voltage parameter for ground power unit")
	}
	if def.Min != 20 || def.Max != 32 || def.Nominal != 28 {
		t.Fatalf("unexpected voltage bounds: %+v", def)
	}
	if def.Range() != 12 {
		t.Fatalf("expected range 12, got %v", def.Range())
	}

	if _, ok := c.Parameter(DeviceTypeGroundPowerUnit, "liquid_level"); ok {
		t.Fatalf("liquid_level should not exist for ground power unit")
	}
	if _, ok := c.Parameter(DeviceTypeCryogenicLine, "liquid_level"); !ok {
		t.Fatalf("expected liquid_level for cryogenic line")
	}
}

func TestCommandSpecLookup(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	spec, ok := c.CommandSpec(DeviceTypeCryogenicLine, "open_valve")
	if !ok {
		t.Fatalf("expected open_valve for cryogenic line")
	}
	if spec.Interlock == nil {
		t.Fatalf("open_valve must carry an interlock")
	}

	if _, ok := c.CommandSpec(DeviceTypeGroundPowerUnit, "open_valve"); ok {
		t.Fatalf("open_valve should not exist for ground power unit")
	}

	for _, commandType := range []string{"close_valve"} {
		spec, ok := c.CommandSpec(DeviceTypeCryogenicLine, commandType)
		if !ok {
			t.Fatalf("expected %s for cryogenic line", commandType)
		}
		if spec.Interlock != nil {
			t.Fatalf("%s must not carry an interlock", commandType)
		}
	}
	spec, ok = c.CommandSpec(DeviceTypeGroundPowerUnit, "disable_output")
	if !ok || spec.Interlock != nil {
		t.Fatalf("disable_output must exist without an interlock")
	}

	spec, ok = c.CommandSpec(DeviceTypeGroundPowerUnit, "emergency_shutdown")
	if !ok || spec.Class != ClassPriority {
		t.Fatalf("emergency_shutdown must be a priority command")
	}
	spec, ok = c.CommandSpec(DeviceTypeCryogenicLine, "recover")
	if !ok || spec.Class != ClassRecovery {
		t.Fatalf("recover must be a recovery command")
	}
}

func TestValveOpenInterlock(t *testing.T) {
	spec, _ := mustCatalog(t).CommandSpec(DeviceTypeCryogenicLine, "open_valve")

	if ok, _ := spec.Interlock(Snapshot{Telemetry: map[string]float64{"temperature": -50}}); ok {
		t.Fatalf("expected rejection at -50 degC")
	}
	if ok, reason := spec.Interlock(Snapshot{Telemetry: map[string]float64{}}); ok || reason == "" {
		t.Fatalf("expected rejection with reason when temperature unknown")
	}
	if ok, _ := spec.Interlock(Snapshot{Telemetry: map[string]float64{"temperature": -150}}); !ok {
		t.Fatalf("expected admission at -150 degC")
	}
}

func TestOutputEnableInterlock(t *testing.T) {
	spec, _ := mustCatalog(t).CommandSpec(DeviceTypeGroundPowerUnit, "enable_output")

	if ok, _ := spec.Interlock(Snapshot{Mode: "STANDBY", Status: "NOMINAL"}); ok {
		t.Fatalf("expected rejection outside ACTIVE mode")
	}
	if ok, _ := spec.Interlock(Snapshot{Mode: "ACTIVE", Status: "FAULT"}); ok {
		t.Fatalf("expected rejection while faulted")
	}
	if ok, _ := spec.Interlock(Snapshot{Mode: "ACTIVE", Status: "NOMINAL"}); !ok {
		t.Fatalf("expected admission in ACTIVE mode")
	}
}

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return c
}
