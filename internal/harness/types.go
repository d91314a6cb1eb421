package harness

import (
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region step
// Step is one injected event. With 12 logits the step goes through
// calibration; otherwise Class and U are treated as an already calibrated
// classifier output.
type Step struct {
	T      int64     `json:"t"`
	Class  int       `json:"class"`
	U      float64   `json:"u"`
	Logits []float64 `json:"logits,omitempty"`
}

// #endregion step

// #region record
// Record captures the pipeline outcome of one step.
type Record struct {
	Index      int
	T          int64
	Class      taxonomy.Class
	U          float64
	S          float64
	CCS        float64
	Entropy    float64
	Mode       mode.Mode
	IntervalMs int64
	Changed    bool
	Reason     string // controller decision reason
	Err        mode.Fault
}

// #endregion record

// #region summary
// Summary provides aggregate stats from a run.
type Summary struct {
	TotalSteps  int
	Transitions int
	Fallbacks   int
	ModeCounts  map[mode.Mode]int
	FinalMode   mode.Mode
	FinalErr    mode.Fault
	MeanCCS     float64
	MaxCCS      float64
}

// #endregion summary

// #region metric
// Metric captures a single property check over a run. Value is the number
// of violations.
type Metric struct {
	Name   string
	Value  float64
	Pass   bool
	Reason string
}

// Report is the output of Check.
type Report struct {
	Passed  bool
	Metrics []Metric
}

// #endregion metric
