package harness

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/labels"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

func phase1(t *testing.T) config.Config {
	t.Helper()
	return config.MustProfile(config.Phase1)
}

func mustRun(t *testing.T, cfg config.Config, steps []Step) []Record {
	t.Helper()
	records, err := RunConfig(cfg, steps)
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	if report := Check(records, cfg); !report.Passed {
		for _, m := range report.Metrics {
			if !m.Pass {
				t.Errorf("property %s failed %v times: %s", m.Name, m.Value, m.Reason)
			}
		}
	}
	return records
}

// #region scenarios

// 1. Steady stationary: S=1, CCS=0.03, QUIET at 2000ms throughout.
func TestScenario_SteadyStationary(t *testing.T) {
	cfg := phase1(t)
	steps := Synthetic(0, 1000, cfg.Calibration.Temperature, Segment{Class: taxonomy.Sitting, U: 0.05, Count: 20})
	records := mustRun(t, cfg, steps)

	for _, r := range records {
		if r.Class != taxonomy.Known(taxonomy.Sitting) {
			t.Fatalf("step %d: expected Sitting, got %s", r.Index, r.Class)
		}
		if math.Abs(r.S-1) > 1e-9 || math.Abs(r.CCS-0.03) > 1e-9 {
			t.Errorf("step %d: expected S=1 CCS=0.03, got S=%.4f CCS=%.6f", r.Index, r.S, r.CCS)
		}
		if r.Mode != mode.Quiet || r.IntervalMs != 2000 {
			t.Errorf("step %d: expected QUIET/2000, got %s/%d", r.Index, r.Mode, r.IntervalMs)
		}
	}
}

// 2. Onset of activity: the window drifts into band U and UNCERTAIN holds by event 15.
func TestScenario_Onset(t *testing.T) {
	cfg := phase1(t)
	steps := Synthetic(0, 1000, cfg.Calibration.Temperature,
		Segment{Class: taxonomy.Sitting, U: 0.05, Count: 10},
		Segment{Class: taxonomy.Walking, U: 0.10, Count: 10},
	)
	records := mustRun(t, cfg, steps)

	ev11 := records[10]
	if math.Abs(ev11.S-0.9) > 1e-9 || math.Abs(ev11.CCS-0.10) > 1e-9 || ev11.Mode != mode.Quiet {
		t.Errorf("event 11: expected S=0.9 CCS=0.10 QUIET, got S=%.4f CCS=%.4f %s", ev11.S, ev11.CCS, ev11.Mode)
	}
	if r := records[12]; r.Mode != mode.Uncertain || !r.Changed {
		t.Errorf("event 13: expected transition to UNCERTAIN, got %s (%s)", r.Mode, r.Reason)
	}
	ev15 := records[14]
	if math.Abs(ev15.S-0.5) > 1e-9 || math.Abs(ev15.CCS-0.26) > 1e-9 {
		t.Errorf("event 15: expected S=0.5 CCS=0.26, got S=%.4f CCS=%.4f", ev15.S, ev15.CCS)
	}
	if ev15.Mode != mode.Uncertain || ev15.IntervalMs != 500 {
		t.Errorf("event 15: expected UNCERTAIN/500, got %s/%d", ev15.Mode, ev15.IntervalMs)
	}
}

// 3. High uncertainty burst after a uniform window: band A, ACTIVE once dwell clears.
func TestScenario_UncertaintyBurst(t *testing.T) {
	cfg := phase1(t)
	steps := Calibrated(0, 100, Segment{Class: taxonomy.Sitting, U: 0.05, Count: 10})
	steps = append(steps,
		Step{T: 950, Class: taxonomy.Sitting, U: 0.6},
		Step{T: 1000, Class: taxonomy.Sitting, U: 0.6},
	)
	records := mustRun(t, cfg, steps)

	burst := records[10]
	if math.Abs(burst.S-1) > 1e-9 || math.Abs(burst.CCS-0.36) > 1e-9 {
		t.Errorf("burst: expected S=1 CCS=0.36, got S=%.4f CCS=%.4f", burst.S, burst.CCS)
	}
	if burst.Mode != mode.Quiet || burst.Reason != "dwell_lock" {
		t.Errorf("burst at t=950: expected dwell-locked QUIET, got %s (%s)", burst.Mode, burst.Reason)
	}
	if r := records[11]; r.Mode != mode.Active || r.IntervalMs != 100 {
		t.Errorf("t=1000: expected ACTIVE/100, got %s/%d", r.Mode, r.IntervalMs)
	}
}

// Through calibration the burst is rejected to Unknown, which also breaks
// the window's stability; the score stays in band A.
func TestScenario_UncertaintyBurstCalibrated(t *testing.T) {
	cfg := phase1(t)
	steps := Synthetic(0, 1000, cfg.Calibration.Temperature,
		Segment{Class: taxonomy.Sitting, U: 0.05, Count: 10},
		Segment{Class: taxonomy.Sitting, U: 0.6, Count: 1},
	)
	records := mustRun(t, cfg, steps)

	r := records[10]
	if r.Class.IsKnown() {
		t.Errorf("expected Unknown at max(p)=0.4, got %s", r.Class)
	}
	if math.Abs(r.CCS-0.40) > 1e-9 {
		t.Errorf("expected CCS 0.40, got %.6f", r.CCS)
	}
	if r.Mode != mode.Active || r.IntervalMs != 100 {
		t.Errorf("expected ACTIVE/100, got %s/%d", r.Mode, r.IntervalMs)
	}
}

// 4. Dwell lock, driven from a fixture.
// 6. Time regression, driven from a fixture.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) < 4 {
		t.Fatalf("expected at least 4 fixtures, found %d", len(paths))
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			if err != nil {
				t.Fatalf("LoadFixture: %v", err)
			}
			cfg, err := f.Config()
			if err != nil {
				t.Fatalf("Config: %v", err)
			}
			records := mustRun(t, cfg, f.Steps)
			for _, msg := range f.Verify(records) {
				t.Error(msg)
			}
		})
	}
}

// 5. Unknown rejection: max(p)=0.50 < tau maps to Unknown and group 3.
func TestScenario_UnknownRejection(t *testing.T) {
	cfg := phase1(t)
	steps := Synthetic(0, 1000, cfg.Calibration.Temperature, Segment{Class: taxonomy.Walking, U: 0.5, Count: 1})
	records := mustRun(t, cfg, steps)

	r := records[0]
	if r.Class.IsKnown() || r.Class.ID() != taxonomy.UnknownID {
		t.Fatalf("expected Unknown(12), got %s", r.Class)
	}
	g, err := taxonomy.MapTo4Class(r.Class.ID())
	if err != nil || g != taxonomy.GroupUnknown || uint8(g) != 3 {
		t.Errorf("expected group 3, got %d (%v)", g, err)
	}
}

// #endregion scenarios

// #region properties

// Random streams keep every property: CCS range, dwell, binding and
// uniform-window stability.
func TestProperties_RandomStreams(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, stability := range []string{config.StabilityModeFraction, config.StabilityTransitions} {
		cfg := phase1(t)
		cfg.CCS.Stability = stability
		for run := 0; run < 20; run++ {
			var steps []Step
			var tMs int64
			for i := 0; i < 200; i++ {
				tMs += int64(rng.Intn(1500))
				st := Step{T: tMs, Class: rng.Intn(taxonomy.NumClasses + 1), U: rng.Float64()}
				if rng.Intn(4) == 0 {
					st.Class = taxonomy.Walking // runs of the same class
				}
				steps = append(steps, st)
			}
			mustRun(t, cfg, steps)
		}
	}
}

func TestProperties_RandomLogits(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cfg := phase1(t)
	var steps []Step
	var tMs int64
	for i := 0; i < 500; i++ {
		tMs += int64(rng.Intn(1200))
		z := make([]float64, taxonomy.NumClasses)
		for j := range z {
			z[j] = rng.NormFloat64() * 4
		}
		steps = append(steps, Step{T: tMs, Logits: z})
	}
	records := mustRun(t, cfg, steps)
	for _, r := range records {
		if r.Entropy < 0 || r.Entropy > 1 {
			t.Fatalf("step %d: entropy %.4f outside [0,1]", r.Index, r.Entropy)
		}
	}
}

func TestRun_RejectsBadLogitCount(t *testing.T) {
	_, err := RunConfig(phase1(t), []Step{{T: 0, Logits: []float64{1, 2, 3}}})
	if err == nil {
		t.Fatal("expected error for 3 logits")
	}
}

func TestCheck_DetectsViolations(t *testing.T) {
	cfg := phase1(t)
	records := []Record{
		{Index: 0, T: 0, CCS: 0.03, Mode: mode.Quiet, IntervalMs: 2000},
		{Index: 1, T: 200, CCS: 1.2, Mode: mode.Active, IntervalMs: 500},
	}
	report := Check(records, cfg)
	if report.Passed {
		t.Fatal("expected report to fail")
	}
	failed := map[string]bool{}
	for _, m := range report.Metrics {
		if !m.Pass {
			failed[m.Name] = true
		}
	}
	for _, name := range []string{"ccs_range", "dwell_respected", "interval_binding"} {
		if !failed[name] {
			t.Errorf("expected %s to fail", name)
		}
	}
}

// Label cyclicity: the (k·L + i)-th step replays label i.
func TestFromSession_Cyclic(t *testing.T) {
	cur, err := labels.Open("03")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l := cur.Session().Len()
	steps := FromSession(&cur, 3*l+2, 0, 1000, 0.05)
	seq := cur.Session().Labels()
	for k := 0; k*l < len(steps); k++ {
		for i := 0; i < l && k*l+i < len(steps); i++ {
			want := taxonomy.Representative(taxonomy.Group(seq[i])).ID()
			if got := steps[k*l+i].Class; got != want {
				t.Fatalf("step %d: expected class %d, got %d", k*l+i, want, got)
			}
		}
	}
	mustRun(t, phase1(t), steps)
}

func TestSummarize_Onset(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "onset.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	cfg, err := f.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	records, err := RunConfig(cfg, f.Steps)
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	s := Summarize(records)
	if s.TotalSteps != 20 || s.Transitions != 2 || s.Fallbacks != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.ModeCounts[mode.Uncertain] != 5 {
		t.Errorf("expected 5 UNCERTAIN steps, got %d", s.ModeCounts[mode.Uncertain])
	}
	if s.FinalMode != mode.Quiet || s.MaxCCS < 0.26-1e-9 {
		t.Errorf("expected final QUIET with max CCS 0.26, got %s %.4f", s.FinalMode, s.MaxCCS)
	}
}

func TestTally_MatchesSummarize(t *testing.T) {
	steps := Calibrated(0, 1000,
		Segment{Class: taxonomy.Sitting, U: 0.05, Count: 5},
		Segment{Class: taxonomy.Walking, U: 0.9, Count: 5},
	)
	records := mustRun(t, phase1(t), steps)

	var tally Tally
	for i, r := range records {
		tally.Add(r)
		if got := tally.Summary().TotalSteps; got != i+1 {
			t.Fatalf("after %d records tally has %d steps", i+1, got)
		}
	}
	got, want := tally.Summary(), Summarize(records)
	if got.Transitions != want.Transitions || got.FinalMode != want.FinalMode ||
		got.MeanCCS != want.MeanCCS || got.MaxCCS != want.MaxCCS {
		t.Errorf("tally %+v differs from summarize %+v", got, want)
	}

	// Summary hands out a copy of the counts.
	got.ModeCounts[mode.Active] = 99
	if tally.Summary().ModeCounts[mode.Active] == 99 {
		t.Error("summary aliases the tally's counts")
	}
}

// #endregion properties
