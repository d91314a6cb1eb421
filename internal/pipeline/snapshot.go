package pipeline

import (
	"math"
	"sync/atomic"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region snapshot

// Snapshot is the last published pipeline state.
type Snapshot struct {
	T          int64
	CCS        float64
	U          float64
	S          float64
	Mode       mode.Mode
	IntervalMs int64
	EntryTS    int64
	LastClass  taxonomy.Class
	Err        mode.Fault
	Seq        uint64 // number of publishes so far
}

// #endregion snapshot

// #region buffer

// slot holds one copy of the snapshot. seq is odd while a write is in
// progress.
type slot struct {
	seq      atomic.Uint64
	t        atomic.Int64
	ccs      atomic.Uint64
	u        atomic.Uint64
	s        atomic.Uint64
	mode     atomic.Uint32
	interval atomic.Int64
	entry    atomic.Int64
	class    atomic.Int32
	fault    atomic.Uint32
	pubs     atomic.Uint64
}

// snapshotBuffer is a double buffer with per-slot sequence counters. The
// writer fills the slot readers are not pointed at, then flips the index.
// Readers retry if the slot changed under them.
type snapshotBuffer struct {
	slots     [2]slot
	published atomic.Uint32
	pubs      uint64 // writer-owned
}

func (b *snapshotBuffer) store(s Snapshot) {
	b.pubs++
	next := 1 - b.published.Load()
	sl := &b.slots[next]

	sl.seq.Add(1)
	sl.t.Store(s.T)
	sl.ccs.Store(math.Float64bits(s.CCS))
	sl.u.Store(math.Float64bits(s.U))
	sl.s.Store(math.Float64bits(s.S))
	sl.mode.Store(uint32(s.Mode))
	sl.interval.Store(s.IntervalMs)
	sl.entry.Store(s.EntryTS)
	sl.class.Store(int32(s.LastClass.ID()))
	sl.fault.Store(s.Err.Code())
	sl.pubs.Store(b.pubs)
	sl.seq.Add(1)

	b.published.Store(next)
}

func (b *snapshotBuffer) load() Snapshot {
	for {
		sl := &b.slots[b.published.Load()]
		before := sl.seq.Load()
		if before&1 == 1 {
			continue
		}
		s := Snapshot{
			T:          sl.t.Load(),
			CCS:        math.Float64frombits(sl.ccs.Load()),
			U:          math.Float64frombits(sl.u.Load()),
			S:          math.Float64frombits(sl.s.Load()),
			Mode:       mode.Mode(sl.mode.Load()),
			IntervalMs: sl.interval.Load(),
			EntryTS:    sl.entry.Load(),
			Err:        mode.Faults[sl.fault.Load()],
			Seq:        sl.pubs.Load(),
		}
		cls := int(sl.class.Load())
		if sl.seq.Load() != before {
			continue
		}
		if cls < taxonomy.NumClasses {
			s.LastClass = taxonomy.Known(cls)
		}
		return s
	}
}

// #endregion buffer
