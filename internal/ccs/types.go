package ccs

import (
	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region config

// EstimatorConfig holds fusion weights, window size and stability metric.
type EstimatorConfig struct {
	Alpha      float64 // weight on U
	Beta       float64 // weight on (1 - S)
	WindowSize int
	Stability  string // config.StabilityModeFraction | config.StabilityTransitions
}

// FromConfig extracts the estimator parameters.
func FromConfig(cfg config.Config) EstimatorConfig {
	return EstimatorConfig{
		Alpha:      cfg.CCS.Alpha,
		Beta:       cfg.CCS.Beta,
		WindowSize: cfg.CCS.WindowSize,
		Stability:  cfg.CCS.Stability,
	}
}

// DefaultEstimatorConfig returns the deployed weights (0.6/0.4, W=10).
func DefaultEstimatorConfig() EstimatorConfig {
	return FromConfig(config.DefaultConfig())
}

// #endregion config

// #region estimate

// Estimate is the result of one Push.
type Estimate struct {
	U     float64
	S     float64
	CCS   float64
	Mode  taxonomy.Class // most frequent class in H, ties to most recent
	Count int            // |H|
}

// #endregion estimate
