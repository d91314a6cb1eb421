package harness

import (
	"fmt"

	"github.com/danielpatrickdp/ccs-cadence/internal/calib"
	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/labels"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region run
// Run feeds steps through p in order and records every outcome.
func Run(p *pipeline.Pipeline, steps []Step) ([]Record, error) {
	records := make([]Record, 0, len(steps))
	for i, st := range steps {
		var r pipeline.Result
		switch len(st.Logits) {
		case 0:
			r = p.IngestEvent(st.T, st.Class, st.U)
		case taxonomy.NumClasses:
			var z calib.Logits
			copy(z[:], st.Logits)
			r = p.Ingest(st.T, z)
		default:
			return records, fmt.Errorf("step %d: expected %d logits, got %d", i, taxonomy.NumClasses, len(st.Logits))
		}
		records = append(records, NewRecord(i, r))
	}
	return records, nil
}

// NewRecord converts the i-th pipeline result.
func NewRecord(i int, r pipeline.Result) Record {
	return Record{
		Index:      i,
		T:          r.T,
		Class:      r.Class,
		U:          r.U,
		S:          r.S,
		CCS:        r.CCS,
		Entropy:    r.Entropy,
		Mode:       r.Mode,
		IntervalMs: r.IntervalMs,
		Changed:    r.Changed,
		Reason:     r.Decision.Reason,
		Err:        r.Err,
	}
}

// RunConfig builds a fresh pipeline from cfg and runs steps through it.
func RunConfig(cfg config.Config, steps []Step) ([]Record, error) {
	p, err := pipeline.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return Run(p, steps)
}

// #endregion run

// #region drivers
// Segment is a run of Count events sharing a class and uncertainty.
type Segment struct {
	Class int
	U     float64
	Count int
}

// Synthetic lays segments out at a fixed cadence starting at start. Each
// step carries logits that calibrate at temperature back to (Class, U).
func Synthetic(start, cadenceMs int64, temperature float64, segments ...Segment) []Step {
	var steps []Step
	t := start
	for _, seg := range segments {
		for i := 0; i < seg.Count; i++ {
			z := calib.Synthesize(seg.Class, seg.U, temperature)
			steps = append(steps, Step{T: t, Class: seg.Class, U: seg.U, Logits: z[:]})
			t += cadenceMs
		}
	}
	return steps
}

// Calibrated is Synthetic without logits: steps bypass calibration.
func Calibrated(start, cadenceMs int64, segments ...Segment) []Step {
	var steps []Step
	t := start
	for _, seg := range segments {
		for i := 0; i < seg.Count; i++ {
			steps = append(steps, Step{T: t, Class: seg.Class, U: seg.U})
			t += cadenceMs
		}
	}
	return steps
}

// FromSession draws n labels from the cursor. Each operational group label
// becomes its representative class with uncertainty u.
func FromSession(cur *labels.Cursor, n int, start, cadenceMs int64, u float64) []Step {
	steps := make([]Step, 0, n)
	t := start
	for i := 0; i < n; i++ {
		cls := taxonomy.Representative(taxonomy.Group(cur.Next()))
		steps = append(steps, Step{T: t, Class: cls.ID(), U: u})
		t += cadenceMs
	}
	return steps
}

// #endregion drivers

// #region summarize
// Summarize aggregates a run.
func Summarize(records []Record) Summary {
	var t Tally
	for _, r := range records {
		t.Add(r)
	}
	return t.Summary()
}

// Tally aggregates records one at a time, for runs too long to keep.
// The zero value is ready to use.
type Tally struct {
	s    Summary
	sum  float64
	prev mode.Mode
}

// Add folds r into the tally.
func (t *Tally) Add(r Record) {
	if t.s.ModeCounts == nil {
		t.s.ModeCounts = make(map[mode.Mode]int)
	}
	t.s.TotalSteps++
	t.s.ModeCounts[r.Mode]++
	if r.Mode != t.prev {
		t.s.Transitions++
		if r.Mode == mode.Fallback {
			t.s.Fallbacks++
		}
	}
	t.prev = r.Mode
	t.sum += r.CCS
	if r.CCS > t.s.MaxCCS {
		t.s.MaxCCS = r.CCS
	}
	t.s.FinalMode = r.Mode
	t.s.FinalErr = r.Err
}

// Summary returns the aggregate so far.
func (t *Tally) Summary() Summary {
	s := t.s
	s.ModeCounts = make(map[mode.Mode]int, len(t.s.ModeCounts))
	for m, n := range t.s.ModeCounts {
		s.ModeCounts[m] = n
	}
	if s.TotalSteps > 0 {
		s.MeanCCS = t.sum / float64(s.TotalSteps)
	}
	return s
}

// #endregion summarize
