package cadence

import (
	"fmt"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

// #region table

// Table maps each mode to an advertising interval in milliseconds.
type Table struct {
	intervals [4]int64
}

// FromConfig builds the table from the BLE intervals.
func FromConfig(cfg config.Config) Table {
	return Table{intervals: [4]int64{
		mode.Quiet:     cfg.BLE.IntervalQuiet,
		mode.Uncertain: cfg.BLE.IntervalUncertain,
		mode.Active:    cfg.BLE.IntervalActive,
		mode.Fallback:  cfg.BLE.IntervalFallback,
	}}
}

// DefaultTable is QUIET 2000, UNCERTAIN 500, ACTIVE 100, FALLBACK 1000.
func DefaultTable() Table {
	return FromConfig(config.DefaultConfig())
}

// Interval is total over the four modes.
func (t Table) Interval(m mode.Mode) int64 {
	if int(m) >= len(t.intervals) {
		return t.intervals[mode.Fallback]
	}
	return t.intervals[m]
}

// ModeFor is the reverse lookup. It is only defined when the intervals
// are distinct; ok is false otherwise or when ms is not in the table.
func (t Table) ModeFor(ms int64) (mode.Mode, bool) {
	if !t.Distinct() {
		return 0, false
	}
	for m, iv := range t.intervals {
		if iv == ms {
			return mode.Mode(m), true
		}
	}
	return 0, false
}

// Distinct reports whether every mode has its own interval.
func (t Table) Distinct() bool {
	seen := make(map[int64]struct{}, len(t.intervals))
	for _, iv := range t.intervals {
		if _, dup := seen[iv]; dup {
			return false
		}
		seen[iv] = struct{}{}
	}
	return true
}

// #endregion table

// #region binder

// Sink consumes interval changes. Implementations must tolerate the same
// interval being delivered twice.
type Sink interface {
	ApplyInterval(m mode.Mode, intervalMs int64) error
}

// Binder tracks the last emitted mode and emits only on change.
type Binder struct {
	table   Table
	last    mode.Mode
	emitted bool
	sinks   []Sink
}

// NewBinder creates a binder. Sinks are notified in order on every change.
func NewBinder(table Table, sinks ...Sink) *Binder {
	return &Binder{table: table, sinks: sinks}
}

// Bind returns the interval for m and whether it differs from the last
// emitted mode. The first call always emits.
func (b *Binder) Bind(m mode.Mode) (int64, bool, error) {
	iv := b.table.Interval(m)
	if b.emitted && m == b.last {
		return iv, false, nil
	}
	b.last = m
	b.emitted = true

	var firstErr error
	for _, s := range b.sinks {
		if err := s.ApplyInterval(m, iv); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("apply interval %dms: %w", iv, err)
		}
	}
	return iv, true, firstErr
}

// Current returns the last emitted interval, or the QUIET interval before
// the first Bind.
func (b *Binder) Current() int64 {
	if !b.emitted {
		return b.table.Interval(mode.Quiet)
	}
	return b.table.Interval(b.last)
}

// Table returns the interval table.
func (b *Binder) Table() Table { return b.table }

// #endregion binder
