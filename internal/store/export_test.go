package store

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/harness"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

func storedRun(t *testing.T, s *Store, cfg config.Config, records []harness.Record) string {
	t.Helper()
	run, err := s.BeginRun("test", cfg)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := s.AppendSteps(run.RunID, records); err != nil {
		t.Fatalf("AppendSteps: %v", err)
	}
	return run.RunID
}

func TestExportFixture_Replays(t *testing.T) {
	s := tempDB(t)
	cfg := config.DefaultConfig()
	cfg.CCS.MinDwellMs = 0
	records := onsetRecords(t, cfg)
	runID := storedRun(t, s, cfg, records)

	f, err := s.ExportFixture(runID)
	if err != nil {
		t.Fatalf("ExportFixture: %v", err)
	}
	if f.Profile != "phase1" || len(f.Steps) != len(records) {
		t.Fatalf("unexpected fixture header: profile=%s steps=%d", f.Profile, len(f.Steps))
	}
	if f.Overrides.MinDwellMs == nil || *f.Overrides.MinDwellMs != 0 {
		t.Errorf("expected dwell override 0, got %v", f.Overrides.MinDwellMs)
	}
	if f.Overrides.WindowSize != nil || f.Overrides.Stability != nil {
		t.Errorf("expected only the dwell override, got %+v", f.Overrides)
	}

	// The exported fixture reproduces the run exactly.
	fcfg, err := f.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if fcfg != cfg {
		t.Fatalf("config mismatch:\n got %+v\nwant %+v", fcfg, cfg)
	}
	replayed, err := harness.RunConfig(fcfg, f.Steps)
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	if msgs := f.Verify(replayed); len(msgs) > 0 {
		t.Errorf("replay diverged:\n%s", strings.Join(msgs, "\n"))
	}
}

func TestExportFixture_Rejects(t *testing.T) {
	s := tempDB(t)

	if _, err := s.ExportFixture("missing"); err == nil {
		t.Error("expected error for unknown run")
	}

	// 1. Thresholds have no fixture override.
	cfg := config.DefaultConfig()
	cfg.CCS.ThetaHigh = 0.5
	runID := storedRun(t, s, cfg, onsetRecords(t, cfg))
	if _, err := s.ExportFixture(runID); err == nil {
		t.Error("expected error for threshold change")
	}

	// 2. Rejected events lost their timestamps.
	cfg = config.DefaultConfig()
	records, err := harness.RunConfig(cfg, []harness.Step{
		{T: 1000, Class: taxonomy.Sitting, U: 0.05},
		{T: 500, Class: taxonomy.Sitting, U: 0.05},
	})
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	if records[1].Err != mode.FaultTimeRegression {
		t.Fatalf("expected time regression, got %q", records[1].Err)
	}
	runID = storedRun(t, s, cfg, records)
	if _, err := s.ExportFixture(runID); err == nil {
		t.Error("expected error for time regression")
	}
}
