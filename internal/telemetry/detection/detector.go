package detection

import (
	"math"

	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/catalog"
	telemetry "gse-control/internal/telemetry/domain"
	"gse-control/internal/telemetry/statistics"
)

const (
	// DefaultSigmaThreshold flags a sample deviating from the rolling mean
	// by more than this many standard deviations.
	DefaultSigmaThreshold = 3.0
	// DefaultMinSamples is the window size below which statistical
	// detection abstains and only absolute-threshold checks apply.
	DefaultMinSamples = 30
	// faultMargin is the fraction of the parameter range beyond a bound at
	// which a threshold violation escalates from WARNING to FAULT.
	faultMargin = 0.10
)

// Verdict is the detector's classification of one telemetry point.
// A zero Verdict means the point is normal.
type Verdict struct {
	Anomaly   bool
	Type      alarms.Type
	Severity  alarms.Severity
	Threshold float64
}

// Detector classifies telemetry points against parameter bounds and rolling
// statistics. It is deterministic and side-effect-free.
type Detector struct {
	sigma      float64
	minSamples int
}

// New constructs a detector. Non-positive arguments fall back to defaults.
func New(sigma float64, minSamples int) Detector {
	if sigma <= 0 {
		sigma = DefaultSigmaThreshold
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return Detector{sigma: sigma, minSamples: minSamples}
}

// Evaluate decides whether an anomaly condition exists for one point.
// First match wins: absolute thresholds, then a device-reported fault,
// then statistical deviation.
func (d Detector) Evaluate(p telemetry.Point, def catalog.ParameterDef, s statistics.Stats) Verdict {
	if p.Value > def.Max {
		severity := alarms.SeverityWarning
		if p.Value-def.Max > faultMargin*def.Range() {
			severity = alarms.SeverityFault
		}
		return Verdict{Anomaly: true, Type: alarms.TypeThresholdHigh, Severity: severity, Threshold: def.Max}
	}
	if p.Value < def.Min {
		severity := alarms.SeverityWarning
		if def.Min-p.Value > faultMargin*def.Range() {
			severity = alarms.SeverityFault
		}
		return Verdict{Anomaly: true, Type: alarms.TypeThresholdLow, Severity: severity, Threshold: def.Min}
	}

	if p.Status == telemetry.PointStatusFault {
		return Verdict{Anomaly: true, Type: alarms.TypeDeviceFault, Severity: alarms.SeverityFault, Threshold: def.Nominal}
	}

	if s.Count >= d.minSamples && s.StdDev > 0 && math.Abs(p.Value-s.Mean) > d.sigma*s.StdDev {
		return Verdict{
			Anomaly:   true,
			Type:      alarms.TypeStatisticalAnomaly,
			Severity:  alarms.SeverityWarning,
			Threshold: s.Mean + d.sigma*s.StdDev,
		}
	}

	return Verdict{}
}

// WithinSigma reports whether a value sits within the detector's sigma band
// of the given statistics. Windows below the minimum sample count are
// treated as within band.
func (d Detector) WithinSigma(value float64, s statistics.Stats) bool {
	if s.Count < d.minSamples || s.StdDev == 0 {
		return true
	}
	return math.Abs(value-s.Mean) <= d.sigma*s.StdDev
}
