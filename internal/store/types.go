package store

import "time"

// #region run-record
// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID       string
	Source      string // "fixture:<name>" | "session:<id>" | "live"
	Profile     string
	ConfigJSON  string
	SummaryJSON string
	StartedAt   time.Time
}

// #endregion run-record

// #region step-row
// StepRow is one persisted pipeline step.
type StepRow struct {
	RunID      string
	Index      int
	TMs        int64
	ClassID    int
	U          float64
	S          float64
	CCS        float64
	Mode       string
	IntervalMs int64
	Changed    bool
	Reason     string
	Err        string
}

// #endregion step-row

// #region transition-entry
// TransitionEntry is a single row in the transitions table.
type TransitionEntry struct {
	RunID      string
	TMs        int64
	FromMode   string
	ToMode     string
	IntervalMs int64
	CCS        float64
	Reason     string // controller reason, "watchdog", "clear_error"
	Err        string
	CreatedAt  time.Time
}

// #endregion transition-entry
