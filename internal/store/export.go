package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/harness"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

// #region export
// ExportFixture turns a stored run into a replayable fixture: every step
// becomes an event and its recorded outcome an expectation.
//
// Runs holding a time regression cannot be exported: a rejected event is
// stored with the last accepted timestamp, not its own.
func (s *Store) ExportFixture(runID string) (*harness.Fixture, error) {
	var source, profile, cfgJSON string
	err := s.db.QueryRow(
		`SELECT source, profile, config_json FROM runs WHERE run_id = ?`, runID,
	).Scan(&source, &profile, &cfgJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export fixture: run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("export fixture: %w", err)
	}

	var cfg config.Config
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("export fixture: parse config: %w", err)
	}
	overrides, err := fixtureOverrides(config.Profile(profile), cfg)
	if err != nil {
		return nil, fmt.Errorf("export fixture: %w", err)
	}

	rows, err := s.GetSteps(runID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("export fixture: run %s has no steps", runID)
	}

	f := &harness.Fixture{
		Description: fmt.Sprintf("Export of run %s (%s): %d steps", runID, source, len(rows)),
		Profile:     profile,
		Overrides:   overrides,
		Steps:       make([]harness.Step, len(rows)),
		Expected:    make([]harness.FixtureExpected, len(rows)),
		FinalMode:   rows[len(rows)-1].Mode,
	}
	for i, r := range rows {
		if r.Err == string(mode.FaultTimeRegression) {
			return nil, fmt.Errorf("export fixture: step %d was rejected as a time regression", r.Index)
		}
		ccs := r.CCS
		f.Steps[i] = harness.Step{T: r.TMs, Class: r.ClassID, U: r.U}
		f.Expected[i] = harness.FixtureExpected{
			Index:      r.Index,
			Mode:       r.Mode,
			IntervalMs: r.IntervalMs,
			CCS:        &ccs,
			Err:        r.Err,
		}
	}
	return f, nil
}

// fixtureOverrides expresses cfg as profile p plus fixture overrides. Any
// other difference has no fixture representation.
func fixtureOverrides(p config.Profile, cfg config.Config) (harness.FixtureOverrides, error) {
	base, err := config.ForProfile(p)
	if err != nil {
		return harness.FixtureOverrides{}, err
	}
	var o harness.FixtureOverrides
	if cfg.CCS.MinDwellMs != base.CCS.MinDwellMs {
		v := cfg.CCS.MinDwellMs
		o.MinDwellMs = &v
		base.CCS.MinDwellMs = v
	}
	if cfg.CCS.WindowSize != base.CCS.WindowSize {
		v := cfg.CCS.WindowSize
		o.WindowSize = &v
		base.CCS.WindowSize = v
	}
	if cfg.CCS.Stability != base.CCS.Stability {
		v := cfg.CCS.Stability
		o.Stability = &v
		base.CCS.Stability = v
	}
	if base != cfg {
		return harness.FixtureOverrides{}, fmt.Errorf("config differs from profile %s beyond dwell, window and stability", p)
	}
	return o, nil
}

// #endregion export
