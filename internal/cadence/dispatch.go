package cadence

import (
	"fmt"
	"log"
	"sync"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

// #region dispatcher

type change struct {
	mode       mode.Mode
	intervalMs int64
}

// Dispatcher is a Sink that hands interval changes to its own goroutine, so
// slow sinks (broker round trips, disk writes) never stall the caller. When
// the queue is full the oldest pending change is dropped: sinks may skip an
// intermediate interval but always receive the latest one.
type Dispatcher struct {
	sinks []Sink
	queue chan change
	done  chan struct{}

	mu      sync.Mutex
	idle    *sync.Cond
	pending int // queued or being delivered
	closed  bool
}

// NewDispatcher starts the delivery goroutine. depth bounds the number of
// undelivered changes.
func NewDispatcher(depth int, sinks ...Sink) *Dispatcher {
	if depth < 1 {
		depth = 1
	}
	d := &Dispatcher{
		sinks: sinks,
		queue: make(chan change, depth),
		done:  make(chan struct{}),
	}
	d.idle = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// ApplyInterval queues the change and returns immediately. Changes after
// Close are discarded.
func (d *Dispatcher) ApplyInterval(m mode.Mode, intervalMs int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	c := change{mode: m, intervalMs: intervalMs}
	for {
		select {
		case d.queue <- c:
			d.pending++
			return nil
		default:
		}
		select {
		case old := <-d.queue:
			d.pending--
			log.Printf("cadence: sinks behind, skipping %s/%dms", old.mode, old.intervalMs)
		default:
		}
	}
}

// Flush blocks until every queued change has been delivered.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.idle.Wait()
	}
}

// Close delivers what is queued and stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for c := range d.queue {
		for _, s := range d.sinks {
			if err := s.ApplyInterval(c.mode, c.intervalMs); err != nil {
				log.Printf("cadence: %v", fmt.Errorf("apply interval %dms: %w", c.intervalMs, err))
			}
		}
		d.mu.Lock()
		d.pending--
		if d.pending == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}
}

// #endregion dispatcher
