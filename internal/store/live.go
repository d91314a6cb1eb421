package store

import (
	"database/sql"
	"sync"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
)

// #region transition-logger
// TransitionLogger is an interval sink that records every live mode change
// of a pipeline under one run id.
type TransitionLogger struct {
	db     *sql.DB
	runID  string
	source func() pipeline.Snapshot

	mu   sync.Mutex
	last mode.Mode
	seen bool
}

// NewTransitionLogger reads t, CCS and the fault from source on each change.
// source may be nil until SetSource is called.
func NewTransitionLogger(db *sql.DB, runID string, source func() pipeline.Snapshot) *TransitionLogger {
	return &TransitionLogger{db: db, runID: runID, source: source}
}

// SetSource attaches the snapshot source, typically once the pipeline that
// owns this sink has been built.
func (l *TransitionLogger) SetSource(source func() pipeline.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source = source
}

// ApplyInterval implements cadence.Sink. The first call records the
// starting mode.
func (l *TransitionLogger) ApplyInterval(m mode.Mode, intervalMs int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := "START"
	if l.seen {
		if l.last == m {
			return nil
		}
		from = l.last.String()
	}

	var snap pipeline.Snapshot
	if l.source != nil {
		snap = l.source()
	}
	reason := "transition"
	switch {
	case m == mode.Fallback:
		reason = "fault"
	case l.seen && l.last == mode.Fallback:
		reason = "clear_error"
	}

	err := LogTransition(l.db, TransitionEntry{
		RunID:      l.runID,
		TMs:        snap.T,
		FromMode:   from,
		ToMode:     m.String(),
		IntervalMs: intervalMs,
		CCS:        snap.CCS,
		Reason:     reason,
		Err:        string(snap.Err),
	})
	if err != nil {
		return err
	}
	l.last = m
	l.seen = true
	return nil
}

// #endregion transition-logger
