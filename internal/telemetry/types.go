package telemetry

import (
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
)

// #region message
// Message is the JSON body published on every interval change.
type Message struct {
	T          int64   `json:"t"`
	Mode       string  `json:"mode"`
	IntervalMs int64   `json:"interval_ms"`
	CCS        float64 `json:"ccs"`
	U          float64 `json:"u"`
	S          float64 `json:"s"`
	EntryTS    int64   `json:"entry_ts"`
	LastClass  int     `json:"last_class"`
	Err        string  `json:"err,omitempty"`
}

// MessageFromSnapshot flattens a snapshot to its wire form. The class uses
// the external id convention (12 = Unknown).
func MessageFromSnapshot(s pipeline.Snapshot) Message {
	return Message{
		T:          s.T,
		Mode:       s.Mode.String(),
		IntervalMs: s.IntervalMs,
		CCS:        s.CCS,
		U:          s.U,
		S:          s.S,
		EntryTS:    s.EntryTS,
		LastClass:  s.LastClass.ID(),
		Err:        string(s.Err),
	}
}

// #endregion message
