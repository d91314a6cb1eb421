package mode

import (
	"fmt"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
)

// #region band-of

// BandOf classifies a CCS value. The inequalities are authoritative at the
// thresholds: low goes to U, high goes to A.
func BandOf(ccs, thetaLow, thetaHigh float64) Band {
	switch {
	case ccs < thetaLow:
		return BandQ
	case ccs < thetaHigh:
		return BandU
	default:
		return BandA
	}
}

// #endregion band-of

// #region controller

// Controller is the hysteretic mode state machine with a dwell lock and a
// sticky FALLBACK latch.
type Controller struct {
	config  ControllerConfig
	mode    Mode
	entryTS int64
	fault   Fault
}

// NewController validates thresholds and starts in QUIET at t=0.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.ThetaLow < 0 || cfg.ThetaHigh > 1 || cfg.ThetaLow >= cfg.ThetaHigh {
		return nil, &config.ConfigError{
			Field:  "ccs.theta",
			Reason: fmt.Sprintf("need 0 <= %.4f < %.4f <= 1", cfg.ThetaLow, cfg.ThetaHigh),
		}
	}
	if cfg.MinDwellMs < 0 {
		return nil, &config.ConfigError{Field: "ccs.min_dwell_ms", Reason: "must be >= 0"}
	}
	if cfg.HysteresisMargin < 0 || cfg.HysteresisMargin > cfg.ThetaLow {
		return nil, &config.ConfigError{Field: "ccs.hysteresis_margin", Reason: "must be in [0, theta_low]"}
	}
	return &Controller{config: cfg, mode: Quiet}, nil
}

// Step applies one event's CCS at monotonic time t.
func (c *Controller) Step(t int64, ccs float64) Decision {
	d := Decision{From: c.mode, To: c.mode}

	// 1. FALLBACK holds until ClearError.
	if c.mode == Fallback {
		d.Band = BandOf(ccs, c.config.ThetaLow, c.config.ThetaHigh)
		d.Reason = "fallback_latched"
		return d
	}

	// 2. Desired band, with optional margin on the way down.
	d.Band = c.band(ccs)

	// 3. Same band: stay; entry is not refreshed.
	if d.Band.Mode() == c.mode {
		d.Reason = "same_band"
		return d
	}

	// 4. Dwell lock.
	if t-c.entryTS < c.config.MinDwellMs {
		d.Reason = "dwell_lock"
		return d
	}

	// 5. Transition.
	c.mode = d.Band.Mode()
	c.entryTS = t
	d.To = c.mode
	d.Changed = true
	d.Reason = "transition"
	return d
}

// Fail latches FALLBACK at time t. Returns true if the mode changed.
// The first fault is kept until ClearError.
func (c *Controller) Fail(t int64, f Fault) bool {
	if c.mode == Fallback {
		return false
	}
	c.mode = Fallback
	c.entryTS = t
	c.fault = f
	return true
}

// ClearError leaves FALLBACK and restarts in QUIET with entry 0.
// No-op outside FALLBACK.
func (c *Controller) ClearError() bool {
	if c.mode != Fallback {
		return false
	}
	c.mode = Quiet
	c.entryTS = 0
	c.fault = FaultNone
	return true
}

// Mode returns the current state.
func (c *Controller) Mode() Mode { return c.mode }

// EntryTS returns when the current state was entered.
func (c *Controller) EntryTS() int64 { return c.entryTS }

// Fault returns the latched fault, FaultNone outside FALLBACK.
func (c *Controller) Fault() Fault { return c.fault }

// #endregion controller

// #region helpers

func (c *Controller) band(ccs float64) Band {
	b := BandOf(ccs, c.config.ThetaLow, c.config.ThetaHigh)
	m := c.config.HysteresisMargin
	if m > 0 && b.Mode() < c.mode {
		b = BandOf(ccs, c.config.ThetaLow-m, c.config.ThetaHigh-m)
		if b.Mode() > c.mode {
			b = Band(c.mode)
		}
	}
	return b
}

// #endregion helpers
