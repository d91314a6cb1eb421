package mode

import "github.com/danielpatrickdp/ccs-cadence/internal/config"

// #region mode

// Mode is the controller state.
type Mode uint8

const (
	Quiet Mode = iota
	Uncertain
	Active
	Fallback
)

func (m Mode) String() string {
	switch m {
	case Quiet:
		return "QUIET"
	case Uncertain:
		return "UNCERTAIN"
	case Active:
		return "ACTIVE"
	case Fallback:
		return "FALLBACK"
	}
	return "INVALID"
}

// Parse is the inverse of String.
func Parse(s string) (Mode, bool) {
	for _, m := range []Mode{Quiet, Uncertain, Active, Fallback} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// #endregion mode

// #region band

// Band is the CCS-driven target before dwell filtering.
type Band uint8

const (
	BandQ Band = iota
	BandU
	BandA
)

func (b Band) String() string {
	switch b {
	case BandQ:
		return "Q"
	case BandU:
		return "U"
	default:
		return "A"
	}
}

// Mode returns the state a band selects.
func (b Band) Mode() Mode {
	return Mode(b)
}

// #endregion band

// #region fault

// Fault names the reason the controller is latched in FALLBACK.
type Fault string

const (
	FaultNone             Fault = ""
	FaultNumericUnderflow Fault = "numeric_underflow"
	FaultConfig           Fault = "config_error"
	FaultTimeRegression   Fault = "time_regression"
	FaultWatchdogTimeout  Fault = "watchdog_timeout"
)

// Faults lists every fault in code order. Compact encodings carry a fault as
// its index here, so entries are only ever appended.
var Faults = [...]Fault{
	FaultNone,
	FaultNumericUnderflow,
	FaultConfig,
	FaultTimeRegression,
	FaultWatchdogTimeout,
}

// Code returns the index of f in Faults. Unknown faults map to 0.
func (f Fault) Code() uint32 {
	for i, c := range Faults {
		if c == f {
			return uint32(i)
		}
	}
	return 0
}

// FaultFromCode is the inverse of Code.
func FaultFromCode(code uint64) (Fault, bool) {
	if code >= uint64(len(Faults)) {
		return FaultNone, false
	}
	return Faults[code], true
}

// #endregion fault

// #region controller-config

// ControllerConfig holds thresholds and dwell.
type ControllerConfig struct {
	ThetaLow         float64
	ThetaHigh        float64
	MinDwellMs       int64
	HysteresisMargin float64 // extra drop required to move to a lower band
}

// FromConfig extracts the controller parameters.
func FromConfig(cfg config.Config) ControllerConfig {
	return ControllerConfig{
		ThetaLow:         cfg.CCS.ThetaLow,
		ThetaHigh:        cfg.CCS.ThetaHigh,
		MinDwellMs:       cfg.CCS.MinDwellMs,
		HysteresisMargin: cfg.CCS.HysteresisMargin,
	}
}

// DefaultControllerConfig returns the phase1 thresholds.
func DefaultControllerConfig() ControllerConfig {
	return FromConfig(config.DefaultConfig())
}

// #endregion controller-config

// #region decision

// Decision is the outcome of one Step.
type Decision struct {
	From    Mode
	To      Mode
	Band    Band
	Changed bool
	Reason  string // "same_band" | "dwell_lock" | "transition" | "fallback_latched"
}

// #endregion decision
