package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// #region file-config

// FileConfig is the TOML overlay. Unset keys keep the profile's value.
type FileConfig struct {
	Profile     *string         `toml:"profile"`
	Calibration FileCalibration `toml:"calibration"`
	CCS         FileCCS         `toml:"ccs"`
	BLE         FileBLE         `toml:"ble"`
}

// FileCalibration maps [calibration].
type FileCalibration struct {
	Temperature *float64 `toml:"temperature"`
	TauUnknown  *float64 `toml:"tau_unknown"`
}

// FileCCS maps [ccs].
type FileCCS struct {
	Alpha            *float64 `toml:"alpha"`
	Beta             *float64 `toml:"beta"`
	ThetaLow         *float64 `toml:"theta_low"`
	ThetaHigh        *float64 `toml:"theta_high"`
	WindowSize       *int     `toml:"window_size"`
	MinDwellMs       *int64   `toml:"min_dwell_ms"`
	Stability        *string  `toml:"stability"`
	HysteresisMargin *float64 `toml:"hysteresis_margin"`
}

// FileBLE maps [ble].
type FileBLE struct {
	IntervalQuiet     *int64 `toml:"interval_quiet"`
	IntervalUncertain *int64 `toml:"interval_uncertain"`
	IntervalActive    *int64 `toml:"interval_active"`
	IntervalFallback  *int64 `toml:"interval_fallback"`
}

// #endregion file-config

// #region load

// LoadFile applies the TOML file at path on top of profile p and validates
// the result. A missing file is not an error. A file that names a different
// profile is rejected: only one profile may be active.
func LoadFile(path string, p Profile) (Config, error) {
	cfg, err := ForProfile(p)
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("stat config: %w", err)
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if fc.Profile != nil && Profile(*fc.Profile) != p {
		return Config{}, &ConfigError{
			Field:  "profile",
			Reason: fmt.Sprintf("file selects %q but %q is active", *fc.Profile, p),
		}
	}
	fc.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc FileConfig) apply(cfg *Config) {
	setF(&cfg.Calibration.Temperature, fc.Calibration.Temperature)
	setF(&cfg.Calibration.TauUnknown, fc.Calibration.TauUnknown)

	setF(&cfg.CCS.Alpha, fc.CCS.Alpha)
	setF(&cfg.CCS.Beta, fc.CCS.Beta)
	setF(&cfg.CCS.ThetaLow, fc.CCS.ThetaLow)
	setF(&cfg.CCS.ThetaHigh, fc.CCS.ThetaHigh)
	if fc.CCS.WindowSize != nil {
		cfg.CCS.WindowSize = *fc.CCS.WindowSize
	}
	setI(&cfg.CCS.MinDwellMs, fc.CCS.MinDwellMs)
	if fc.CCS.Stability != nil {
		cfg.CCS.Stability = *fc.CCS.Stability
	}
	setF(&cfg.CCS.HysteresisMargin, fc.CCS.HysteresisMargin)

	setI(&cfg.BLE.IntervalQuiet, fc.BLE.IntervalQuiet)
	setI(&cfg.BLE.IntervalUncertain, fc.BLE.IntervalUncertain)
	setI(&cfg.BLE.IntervalActive, fc.BLE.IntervalActive)
	setI(&cfg.BLE.IntervalFallback, fc.BLE.IntervalFallback)
}

func setF(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setI(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

// #endregion load

// #region encode

// ToFile expresses cfg as a fully populated overlay.
func ToFile(cfg Config) FileConfig {
	profile := string(cfg.Profile)
	window := cfg.CCS.WindowSize
	stability := cfg.CCS.Stability
	return FileConfig{
		Profile: &profile,
		Calibration: FileCalibration{
			Temperature: &cfg.Calibration.Temperature,
			TauUnknown:  &cfg.Calibration.TauUnknown,
		},
		CCS: FileCCS{
			Alpha:            &cfg.CCS.Alpha,
			Beta:             &cfg.CCS.Beta,
			ThetaLow:         &cfg.CCS.ThetaLow,
			ThetaHigh:        &cfg.CCS.ThetaHigh,
			WindowSize:       &window,
			MinDwellMs:       &cfg.CCS.MinDwellMs,
			Stability:        &stability,
			HysteresisMargin: &cfg.CCS.HysteresisMargin,
		},
		BLE: FileBLE{
			IntervalQuiet:     &cfg.BLE.IntervalQuiet,
			IntervalUncertain: &cfg.BLE.IntervalUncertain,
			IntervalActive:    &cfg.BLE.IntervalActive,
			IntervalFallback:  &cfg.BLE.IntervalFallback,
		},
	}
}

// WriteTOML encodes cfg in the overlay format LoadFile reads.
func WriteTOML(w io.Writer, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(ToFile(cfg)); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// #endregion encode
