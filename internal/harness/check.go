package harness

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/ccs-cadence/internal/cadence"
	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

const scoreTolerance = 1e-9

// #region check
// Check evaluates the pipeline properties over a run produced with cfg.
// Every metric counts violations; the report passes when all are zero.
func Check(records []Record, cfg config.Config) Report {
	table := cadence.FromConfig(cfg)
	metrics := []Metric{
		checkRange(records),
		checkDwell(records, cfg.CCS.MinDwellMs),
		checkBinding(records, table),
		checkUniformWindow(records, cfg),
		checkFallbackSticky(records, table),
	}

	report := Report{Passed: true, Metrics: metrics}
	for _, m := range metrics {
		if !m.Pass {
			report.Passed = false
		}
	}
	return report
}

// #endregion check

// #region metrics

func checkRange(records []Record) Metric {
	m := Metric{Name: "ccs_range"}
	for _, r := range records {
		if r.CCS < 0 || r.CCS > 1 || math.IsNaN(r.CCS) {
			m.Value++
			if m.Reason == "" {
				m.Reason = fmt.Sprintf("step %d: CCS %.6f outside [0,1]", r.Index, r.CCS)
			}
		}
	}
	m.Pass = m.Value == 0
	return m
}

// checkDwell requires consecutive non-FALLBACK mode changes to be at least
// dwell apart. The initial QUIET is entered at t=0.
func checkDwell(records []Record, dwell int64) Metric {
	m := Metric{Name: "dwell_respected"}
	prevMode := mode.Quiet
	var entry int64
	for _, r := range records {
		if r.Mode != prevMode && r.Mode != mode.Fallback {
			if r.T-entry < dwell {
				m.Value++
				if m.Reason == "" {
					m.Reason = fmt.Sprintf("step %d: %s→%s after %dms < %dms", r.Index, prevMode, r.Mode, r.T-entry, dwell)
				}
			}
			entry = r.T
		}
		prevMode = r.Mode
	}
	m.Pass = m.Value == 0
	return m
}

func checkBinding(records []Record, table cadence.Table) Metric {
	m := Metric{Name: "interval_binding"}
	for _, r := range records {
		if r.IntervalMs != table.Interval(r.Mode) {
			m.Value++
			if m.Reason == "" {
				m.Reason = fmt.Sprintf("step %d: %s bound to %dms", r.Index, r.Mode, r.IntervalMs)
			}
		}
	}
	m.Pass = m.Value == 0
	return m
}

// checkUniformWindow: whenever the last min(n, W) classes agree, S = 1 and
// CCS = alpha*u. Both stability metrics agree on a uniform window.
func checkUniformWindow(records []Record, cfg config.Config) Metric {
	m := Metric{Name: "uniform_window_stability"}
	w := cfg.CCS.WindowSize
	for i, r := range records {
		if r.Err != mode.FaultNone {
			break
		}
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		uniform := true
		for j := lo; j < i; j++ {
			if records[j].Class != r.Class {
				uniform = false
				break
			}
		}
		if !uniform {
			continue
		}
		want := cfg.CCS.Alpha * r.U
		if math.Abs(r.S-1) > scoreTolerance || math.Abs(r.CCS-want) > scoreTolerance {
			m.Value++
			if m.Reason == "" {
				m.Reason = fmt.Sprintf("step %d: uniform window gave S=%.6f CCS=%.6f, want 1 and %.6f", r.Index, r.S, r.CCS, want)
			}
		}
	}
	m.Pass = m.Value == 0
	return m
}

func checkFallbackSticky(records []Record, table cadence.Table) Metric {
	m := Metric{Name: "fallback_sticky"}
	latched := false
	for _, r := range records {
		if r.Err != mode.FaultNone {
			latched = true
		}
		if latched && (r.Mode != mode.Fallback || r.IntervalMs != table.Interval(mode.Fallback)) {
			m.Value++
			if m.Reason == "" {
				m.Reason = fmt.Sprintf("step %d: left FALLBACK without clear (%s)", r.Index, r.Mode)
			}
		}
	}
	m.Pass = m.Value == 0
	return m
}

// #endregion metrics
