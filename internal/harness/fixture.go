package harness

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a harness fixture.
type Fixture struct {
	Description string            `json:"description"`
	Profile     string            `json:"profile"`
	Overrides   FixtureOverrides  `json:"overrides"`
	Steps       []Step            `json:"steps"`
	Expected    []FixtureExpected `json:"expected"`
	FinalMode   string            `json:"final_mode"`
}

// FixtureOverrides adjusts the selected profile. Nil fields keep the
// profile's setting.
type FixtureOverrides struct {
	MinDwellMs *int64  `json:"min_dwell_ms"`
	WindowSize *int    `json:"window_size"`
	Stability  *string `json:"stability"`
}

// FixtureExpected pins the outcome of one step.
type FixtureExpected struct {
	Index      int      `json:"index"`
	Mode       string   `json:"mode"`
	IntervalMs int64    `json:"interval_ms"`
	CCS        *float64 `json:"ccs,omitempty"`
	Err        string   `json:"err,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Config resolves the fixture's profile and overrides into a validated config.
func (f *Fixture) Config() (config.Config, error) {
	p := config.Profile(f.Profile)
	if p == "" {
		p = config.Phase1
	}
	cfg, err := config.ForProfile(p)
	if err != nil {
		return config.Config{}, err
	}
	if f.Overrides.MinDwellMs != nil {
		cfg.CCS.MinDwellMs = *f.Overrides.MinDwellMs
	}
	if f.Overrides.WindowSize != nil {
		cfg.CCS.WindowSize = *f.Overrides.WindowSize
	}
	if f.Overrides.Stability != nil {
		cfg.CCS.Stability = *f.Overrides.Stability
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("fixture config: %w", err)
	}
	return cfg, nil
}

// Verify compares records against the fixture's expectations and returns
// one message per mismatch.
func (f *Fixture) Verify(records []Record) []string {
	var out []string
	for _, e := range f.Expected {
		if e.Index < 0 || e.Index >= len(records) {
			out = append(out, fmt.Sprintf("expected step %d, run has %d", e.Index, len(records)))
			continue
		}
		r := records[e.Index]
		if want, ok := mode.Parse(e.Mode); !ok || r.Mode != want {
			out = append(out, fmt.Sprintf("step %d: expected mode=%s, got %s (reason: %s)", e.Index, e.Mode, r.Mode, r.Reason))
		}
		if r.IntervalMs != e.IntervalMs {
			out = append(out, fmt.Sprintf("step %d: expected interval=%d, got %d", e.Index, e.IntervalMs, r.IntervalMs))
		}
		if e.CCS != nil && abs(r.CCS-*e.CCS) > 1e-6 {
			out = append(out, fmt.Sprintf("step %d: expected ccs=%.4f, got %.4f", e.Index, *e.CCS, r.CCS))
		}
		if mode.Fault(e.Err) != r.Err {
			out = append(out, fmt.Sprintf("step %d: expected err=%q, got %q", e.Index, e.Err, r.Err))
		}
	}
	if f.FinalMode != "" && len(records) > 0 {
		last := records[len(records)-1]
		if last.Mode.String() != f.FinalMode {
			out = append(out, fmt.Sprintf("final: expected mode=%s, got %s", f.FinalMode, last.Mode))
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// #endregion fixture-loader
