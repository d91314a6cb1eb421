package config

import (
	"fmt"
	"math"
)

// #region profiles

// Profile selects one of the canonical threshold/dwell sets.
type Profile string

const (
	Baseline Profile = "baseline"
	Phase1   Profile = "phase1"
)

// Stability metric names accepted in CCSConfig.Stability.
const (
	StabilityModeFraction = "mode_fraction"
	StabilityTransitions  = "transitions"
)

// AlphaBetaTolerance bounds |alpha + beta - 1|.
const AlphaBetaTolerance = 1e-6

// ForProfile returns the validated configuration for p.
func ForProfile(p Profile) (Config, error) {
	cfg := base()
	cfg.Profile = p
	switch p {
	case Baseline:
		cfg.CCS.ThetaLow = 0.40
		cfg.CCS.ThetaHigh = 0.70
		cfg.CCS.MinDwellMs = 2000
	case Phase1:
		cfg.CCS.ThetaLow = 0.15
		cfg.CCS.ThetaHigh = 0.35
		cfg.CCS.MinDwellMs = 1000
	default:
		return Config{}, &ConfigError{Field: "profile", Reason: fmt.Sprintf("unknown profile %q", p)}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustProfile is ForProfile for the built-in profiles; it panics on error.
func MustProfile(p Profile) Config {
	cfg, err := ForProfile(p)
	if err != nil {
		panic(err)
	}
	return cfg
}

// DefaultConfig returns the phase1 profile, the one deployed on the wearable.
func DefaultConfig() Config {
	return MustProfile(Phase1)
}

// base carries everything the profiles share.
func base() Config {
	return Config{
		Model: ModelConfig{
			InputLength:    100,
			InputChannels:  3,
			NumClasses:     12,
			UnknownClassID: 12,
		},
		Calibration: CalibrationConfig{
			Temperature: 0.7320,
			TauUnknown:  0.5800,
		},
		CCS: CCSConfig{
			Alpha:      0.6,
			Beta:       0.4,
			WindowSize: 10,
			Stability:  StabilityModeFraction,
		},
		BLE: BLEConfig{
			IntervalQuiet:     2000,
			IntervalUncertain: 500,
			IntervalActive:    100,
			IntervalFallback:  1000,
		},
	}
}

// #endregion profiles

// #region validate

// Validate checks every parameter invariant and returns the first violation.
func (c Config) Validate() error {
	m := c.Model
	if m.InputLength <= 0 {
		return &ConfigError{Field: "model.input_length", Reason: "must be > 0"}
	}
	if m.InputChannels <= 0 {
		return &ConfigError{Field: "model.input_channels", Reason: "must be > 0"}
	}
	if m.NumClasses != 12 {
		return &ConfigError{Field: "model.n_classes", Reason: fmt.Sprintf("must be 12, got %d", m.NumClasses)}
	}
	if m.UnknownClassID != m.NumClasses {
		return &ConfigError{Field: "model.unknown_class_id", Reason: "must equal n_classes"}
	}

	cal := c.Calibration
	if !(cal.Temperature > 0) || math.IsInf(cal.Temperature, 0) {
		return &ConfigError{Field: "calibration.temperature", Reason: "must be finite and > 0"}
	}
	if !inUnit(cal.TauUnknown) {
		return &ConfigError{Field: "calibration.tau_unknown", Reason: "must be in [0,1]"}
	}

	ccs := c.CCS
	if !inUnit(ccs.Alpha) || !inUnit(ccs.Beta) {
		return &ConfigError{Field: "ccs.alpha/beta", Reason: "weights must be in [0,1]"}
	}
	if math.Abs(ccs.Alpha+ccs.Beta-1) > AlphaBetaTolerance {
		return &ConfigError{Field: "ccs.alpha/beta", Reason: fmt.Sprintf("alpha+beta = %.6f, must be 1", ccs.Alpha+ccs.Beta)}
	}
	if !inUnit(ccs.ThetaLow) || !inUnit(ccs.ThetaHigh) || ccs.ThetaLow >= ccs.ThetaHigh {
		return &ConfigError{Field: "ccs.theta", Reason: "need 0 <= theta_low < theta_high <= 1"}
	}
	if ccs.WindowSize < 1 {
		return &ConfigError{Field: "ccs.window_size", Reason: "must be >= 1"}
	}
	if ccs.MinDwellMs < 0 {
		return &ConfigError{Field: "ccs.min_dwell_ms", Reason: "must be >= 0"}
	}
	switch ccs.Stability {
	case "", StabilityModeFraction, StabilityTransitions:
	default:
		return &ConfigError{Field: "ccs.stability", Reason: fmt.Sprintf("unknown metric %q", ccs.Stability)}
	}
	if ccs.HysteresisMargin < 0 || ccs.HysteresisMargin > ccs.ThetaLow {
		return &ConfigError{Field: "ccs.hysteresis_margin", Reason: "must be in [0, theta_low]"}
	}

	b := c.BLE
	for _, iv := range []struct {
		name string
		ms   int64
	}{
		{"ble.interval_quiet", b.IntervalQuiet},
		{"ble.interval_uncertain", b.IntervalUncertain},
		{"ble.interval_active", b.IntervalActive},
		{"ble.interval_fallback", b.IntervalFallback},
	} {
		if iv.ms <= 0 {
			return &ConfigError{Field: iv.name, Reason: "must be > 0"}
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// #endregion validate
