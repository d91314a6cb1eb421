package ccs

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region estimator

// Estimator fuses instantaneous uncertainty with windowed stability.
// The ring is allocated once; Push never allocates.
type Estimator struct {
	config EstimatorConfig
	ring   []taxonomy.Class
	head   int // next write position
	n      int
}

// NewEstimator validates the weights and allocates the window.
func NewEstimator(cfg EstimatorConfig) (*Estimator, error) {
	if cfg.Alpha < 0 || cfg.Beta < 0 || math.Abs(cfg.Alpha+cfg.Beta-1) > config.AlphaBetaTolerance {
		return nil, &config.ConfigError{
			Field:  "ccs.alpha/beta",
			Reason: fmt.Sprintf("alpha=%.4f beta=%.4f must be non-negative and sum to 1", cfg.Alpha, cfg.Beta),
		}
	}
	if cfg.WindowSize < 1 {
		return nil, &config.ConfigError{Field: "ccs.window_size", Reason: "must be >= 1"}
	}
	switch cfg.Stability {
	case "":
		cfg.Stability = config.StabilityModeFraction
	case config.StabilityModeFraction, config.StabilityTransitions:
	default:
		return nil, &config.ConfigError{Field: "ccs.stability", Reason: fmt.Sprintf("unknown metric %q", cfg.Stability)}
	}
	return &Estimator{
		config: cfg,
		ring:   make([]taxonomy.Class, cfg.WindowSize),
	}, nil
}

// Push appends cls to the window (evicting the oldest when full) and
// returns the fused score for uncertainty u.
func (e *Estimator) Push(u float64, cls taxonomy.Class) Estimate {
	e.ring[e.head] = cls
	e.head = (e.head + 1) % len(e.ring)
	if e.n < len(e.ring) {
		e.n++
	}
	return e.estimate(u)
}

// Peek scores u against the current window without pushing.
func (e *Estimator) Peek(u float64) Estimate {
	return e.estimate(u)
}

// Reset empties the window.
func (e *Estimator) Reset() {
	for i := range e.ring {
		e.ring[i] = taxonomy.Class{}
	}
	e.head = 0
	e.n = 0
}

// Len is |H|.
func (e *Estimator) Len() int { return e.n }

// Window copies H out in arrival order.
func (e *Estimator) Window() []taxonomy.Class {
	out := make([]taxonomy.Class, 0, e.n)
	for i := 0; i < e.n; i++ {
		out = append(out, e.at(i))
	}
	return out
}

// #endregion estimator

// #region scoring

func (e *Estimator) estimate(u float64) Estimate {
	u = clamp(u)
	mode, modeCount := e.modeOf()

	s := 1.0
	switch {
	case e.n == 0:
	case e.config.Stability == config.StabilityTransitions:
		s = e.transitionStability()
	default:
		s = float64(modeCount) / float64(e.n)
	}

	return Estimate{
		U:     u,
		S:     s,
		CCS:   clamp(e.config.Alpha*u + e.config.Beta*(1-s)),
		Mode:  mode,
		Count: e.n,
	}
}

// modeOf tallies a 13-slot histogram over H and returns the most frequent
// class. Ties go to the class seen most recently.
func (e *Estimator) modeOf() (taxonomy.Class, int) {
	if e.n == 0 {
		return taxonomy.Unknown(), 0
	}
	var hist [taxonomy.NumClasses + 1]int
	best := 0
	for i := 0; i < e.n; i++ {
		slot := e.at(i).Slot()
		hist[slot]++
		if hist[slot] > best {
			best = hist[slot]
		}
	}
	for i := e.n - 1; i >= 0; i-- {
		c := e.at(i)
		if hist[c.Slot()] == best {
			return c, best
		}
	}
	return taxonomy.Unknown(), 0
}

// transitionStability is 1 - transitions/(|H|-1).
func (e *Estimator) transitionStability() float64 {
	if e.n <= 1 {
		return 1
	}
	var transitions int
	for i := 1; i < e.n; i++ {
		if e.at(i) != e.at(i-1) {
			transitions++
		}
	}
	return 1 - float64(transitions)/float64(e.n-1)
}

// at returns the i-th element of H in arrival order.
func (e *Estimator) at(i int) taxonomy.Class {
	start := e.head - e.n
	if start < 0 {
		start += len(e.ring)
	}
	return e.ring[(start+i)%len(e.ring)]
}

// #endregion scoring

// #region helpers

// clamp restricts v to [0, 1]; NaN maps to 0.
func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
