package ccs

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region helpers

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(DefaultEstimatorConfig())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var (
	sitting = taxonomy.Known(taxonomy.Sitting)
	walking = taxonomy.Known(taxonomy.Walking)
	unknown = taxonomy.Unknown()
)

// #endregion helpers

// #region init-tests

func TestNewEstimator_AlphaBetaConstraint(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.Beta = 0.5
	_, err := NewEstimator(cfg)
	var ce *config.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNewEstimator_WindowSize(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.WindowSize = 0
	if _, err := NewEstimator(cfg); err == nil {
		t.Fatal("expected error for W=0")
	}
}

func TestNewEstimator_UnknownStability(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.Stability = "entropy"
	if _, err := NewEstimator(cfg); err == nil {
		t.Fatal("expected error for unknown stability metric")
	}
}

// #endregion init-tests

// #region window-tests

func TestPeek_EmptyWindow(t *testing.T) {
	e := newTestEstimator(t)
	est := e.Peek(0.5)
	if est.S != 1 {
		t.Errorf("expected S=1 on empty window, got %f", est.S)
	}
	if !near(est.CCS, 0.6*0.5) {
		t.Errorf("expected CCS=alpha*u=0.3, got %f", est.CCS)
	}
}

// H contains exactly min(count, W) items in arrival order.
func TestPush_WindowLengthAndOrder(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 25; i++ {
		e.Push(0.1, taxonomy.Known(i%taxonomy.NumClasses))
		want := i + 1
		if want > 10 {
			want = 10
		}
		if e.Len() != want {
			t.Fatalf("after %d pushes expected |H|=%d, got %d", i+1, want, e.Len())
		}
	}
	w := e.Window()
	for j, c := range w {
		if want := (15 + j) % taxonomy.NumClasses; c.ID() != want {
			t.Errorf("H[%d]: expected %d, got %d", j, want, c.ID())
		}
	}
}

// Monotone stability: a uniform window gives S=1 and CCS=alpha*u.
func TestPush_UniformWindow(t *testing.T) {
	e := newTestEstimator(t)
	var est Estimate
	for i := 0; i < 20; i++ {
		est = e.Push(0.05, sitting)
		if est.S != 1 {
			t.Fatalf("event %d: expected S=1, got %f", i+1, est.S)
		}
	}
	if !near(est.CCS, 0.03) {
		t.Errorf("expected CCS=0.03, got %f", est.CCS)
	}
	if est.Mode != sitting {
		t.Errorf("expected mode Sitting, got %v", est.Mode)
	}
}

// Onset: after 10 Sitting, Walking events lower S by 0.1 each.
func TestPush_OnsetOfActivity(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 10; i++ {
		e.Push(0.05, sitting)
	}
	wantS := []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	wantCCS := []float64{0.10, 0.14, 0.18, 0.22, 0.26}
	for k := range wantS {
		est := e.Push(0.10, walking)
		if !near(est.S, wantS[k]) {
			t.Errorf("event %d: expected S=%.1f, got %f", 11+k, wantS[k], est.S)
		}
		if !near(est.CCS, wantCCS[k]) {
			t.Errorf("event %d: expected CCS=%.2f, got %f", 11+k, wantCCS[k], est.CCS)
		}
	}
}

func TestPush_TieBrokenByMostRecent(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 5; i++ {
		e.Push(0, sitting)
	}
	for i := 0; i < 5; i++ {
		e.Push(0, walking)
	}
	est := e.Peek(0)
	if est.Mode != walking {
		t.Errorf("expected tie to resolve to Walking, got %v", est.Mode)
	}
	if !near(est.S, 0.5) {
		t.Errorf("expected S=0.5, got %f", est.S)
	}
}

func TestPush_UnknownCountsInWindow(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 9; i++ {
		e.Push(0, sitting)
	}
	est := e.Push(0.6, unknown)
	if !near(est.S, 0.9) {
		t.Errorf("expected S=0.9, got %f", est.S)
	}
	if !near(est.CCS, 0.6*0.6+0.4*0.1) {
		t.Errorf("expected CCS=0.40, got %f", est.CCS)
	}
}

func TestReset(t *testing.T) {
	e := newTestEstimator(t)
	e.Push(0.2, walking)
	e.Push(0.2, sitting)
	e.Reset()
	if e.Len() != 0 {
		t.Fatalf("expected empty window after reset, got %d", e.Len())
	}
	if est := e.Peek(0.2); est.S != 1 {
		t.Errorf("expected S=1 after reset, got %f", est.S)
	}
}

// #endregion window-tests

// #region property-tests

func TestPush_CCSInUnitInterval(t *testing.T) {
	e := newTestEstimator(t)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		u := rng.Float64()*3 - 1 // includes out-of-range inputs
		est := e.Push(u, taxonomy.Known(rng.Intn(taxonomy.NumClasses)))
		if est.CCS < 0 || est.CCS > 1 {
			t.Fatalf("event %d: CCS=%f out of [0,1]", i, est.CCS)
		}
	}
}

func TestPush_Deterministic(t *testing.T) {
	run := func() []float64 {
		e := newTestEstimator(t)
		rng := rand.New(rand.NewSource(42))
		out := make([]float64, 200)
		for i := range out {
			out[i] = e.Push(rng.Float64(), taxonomy.Known(rng.Intn(3))).CCS
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("event %d: %f != %f", i, a[i], b[i])
		}
	}
}

func TestPush_AllocFree(t *testing.T) {
	e := newTestEstimator(t)
	allocs := testing.AllocsPerRun(100, func() { e.Push(0.1, walking) })
	if allocs != 0 {
		t.Fatalf("expected 0 allocations per Push, got %f", allocs)
	}
}

// #endregion property-tests

// #region transitions-tests

func TestTransitionStability(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.Stability = config.StabilityTransitions
	e, err := NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	if est := e.Push(0, sitting); est.S != 1 {
		t.Errorf("single element: expected S=1, got %f", est.S)
	}
	// S W S W S: 4 transitions over 4 gaps
	e.Push(0, walking)
	e.Push(0, sitting)
	e.Push(0, walking)
	est := e.Push(0, sitting)
	if !near(est.S, 0) {
		t.Errorf("alternating: expected S=0, got %f", est.S)
	}
	if !near(est.CCS, 0.4) {
		t.Errorf("alternating: expected CCS=beta, got %f", est.CCS)
	}
}

// #endregion transitions-tests
