package calib

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region types

// ErrNumericUnderflow is returned when the softmax normalizer is not a
// finite positive number. The result is then uniform and Unknown.
var ErrNumericUnderflow = errors.New("numeric underflow in softmax")

// Logits is one raw classifier output.
type Logits [taxonomy.NumClasses]float64

// Result is a calibrated classification.
type Result struct {
	P     [taxonomy.NumClasses]float64
	MaxP  float64
	Class taxonomy.Class
	U     float64 // 1 - max(p), clamped to [0,1]
}

// Calibrator applies temperature scaling and unknown rejection.
type Calibrator struct {
	temperature float64
	tau         float64
}

// NewCalibrator validates T > 0 and tau in [0,1].
func NewCalibrator(temperature, tau float64) (*Calibrator, error) {
	if !(temperature > 0) || math.IsInf(temperature, 0) {
		return nil, fmt.Errorf("calibrator: temperature %v must be finite and > 0", temperature)
	}
	if tau < 0 || tau > 1 || math.IsNaN(tau) {
		return nil, fmt.Errorf("calibrator: tau %v must be in [0,1]", tau)
	}
	return &Calibrator{temperature: temperature, tau: tau}, nil
}

// #endregion types

// #region calibrate

// Calibrate scales z by 1/T, takes a numerically stable softmax and
// rejects to Unknown when the top probability is below tau.
func (c *Calibrator) Calibrate(z Logits) (Result, error) {
	var r Result

	maxZ := math.Inf(-1)
	for i := range z {
		s := z[i] / c.temperature
		r.P[i] = s
		if s > maxZ {
			maxZ = s
		}
	}

	var sum float64
	if !math.IsInf(maxZ, 0) && !math.IsNaN(maxZ) {
		for i := range r.P {
			e := math.Exp(r.P[i] - maxZ)
			r.P[i] = e
			sum += e
		}
	}
	if !(sum > 0) || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return uniform(), ErrNumericUnderflow
	}

	best := 0
	for i := range r.P {
		r.P[i] /= sum
		if r.P[i] > r.P[best] {
			best = i
		}
	}
	r.MaxP = r.P[best]
	r.U = clamp(1 - r.MaxP)
	if r.MaxP < c.tau {
		r.Class = taxonomy.Unknown()
	} else {
		r.Class = taxonomy.Known(best)
	}
	return r, nil
}

// #endregion calibrate

// #region helpers

// NormalizedEntropy is -sum(p log p) / log(C), in [0,1].
func NormalizedEntropy(p [taxonomy.NumClasses]float64) float64 {
	const eps = 1e-10
	var h float64
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v+eps)
		}
	}
	return clamp(h / math.Log(float64(len(p))))
}

func uniform() Result {
	var r Result
	for i := range r.P {
		r.P[i] = 1.0 / float64(len(r.P))
	}
	r.MaxP = r.P[0]
	r.U = clamp(1 - r.MaxP)
	r.Class = taxonomy.Unknown()
	return r
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers

// #region synthesize

// Synthesize builds logits that calibrate (at temperature T) to a
// distribution whose top class is id with max(p) = 1 - u. The remaining
// mass is spread evenly. u is clamped so that id stays the unique argmax.
func Synthesize(id int, u, temperature float64) Logits {
	n := float64(taxonomy.NumClasses)
	pmax := 1 - u
	if lo := 1/n + 1e-9; pmax < lo {
		pmax = lo
	}
	if hi := 1 - 1e-12; pmax > hi {
		pmax = hi
	}
	rest := (1 - pmax) / (n - 1)

	var z Logits
	for i := range z {
		if i == id {
			z[i] = temperature * math.Log(pmax)
		} else {
			z[i] = temperature * math.Log(rest)
		}
	}
	return z
}

// #endregion synthesize
