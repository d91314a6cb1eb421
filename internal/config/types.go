package config

import "fmt"

// #region model-config

// ModelConfig holds the fixed HAR model dimensions.
type ModelConfig struct {
	InputLength    int // samples per window
	InputChannels  int // accelerometer axes
	NumClasses     int
	UnknownClassID int
}

// #endregion model-config

// #region calibration-config

// CalibrationConfig holds temperature scaling and unknown rejection.
type CalibrationConfig struct {
	Temperature float64 // T > 0
	TauUnknown  float64 // reject when max(p) < tau
}

// #endregion calibration-config

// #region ccs-config

// CCSConfig holds fusion weights, thresholds and dwell.
type CCSConfig struct {
	Alpha      float64 // weight on U
	Beta       float64 // weight on (1 - S)
	ThetaLow   float64
	ThetaHigh  float64
	WindowSize int
	MinDwellMs int64

	// Stability selects the S definition. Empty means mode fraction.
	Stability string
	// HysteresisMargin widens downward thresholds. Zero disables.
	HysteresisMargin float64
}

// #endregion ccs-config

// #region ble-config

// BLEConfig holds advertising intervals per mode, in milliseconds.
type BLEConfig struct {
	IntervalQuiet     int64
	IntervalUncertain int64
	IntervalActive    int64
	IntervalFallback  int64
}

// WatchdogMs is the longest silence tolerated between events.
func (b BLEConfig) WatchdogMs() int64 {
	return 2 * b.IntervalQuiet
}

// #endregion ble-config

// #region config

// Config is the validated, immutable pipeline configuration.
type Config struct {
	Profile     Profile
	Model       ModelConfig
	Calibration CalibrationConfig
	CCS         CCSConfig
	BLE         BLEConfig
}

// ConfigError reports a violated parameter invariant.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// #endregion config
