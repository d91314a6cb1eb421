package pipeline

import (
	"fmt"
	"log"
	"sync"

	"github.com/danielpatrickdp/ccs-cadence/internal/cadence"
	"github.com/danielpatrickdp/ccs-cadence/internal/calib"
	"github.com/danielpatrickdp/ccs-cadence/internal/ccs"
	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

// #region types

// Result is the outcome of one ingested event or watchdog tick.
type Result struct {
	T          int64
	Mode       mode.Mode
	IntervalMs int64
	Changed    bool // advertising interval changed

	Class    taxonomy.Class
	U        float64
	S        float64
	CCS      float64
	Entropy  float64 // normalized entropy of the calibrated distribution, 0 for pre-calibrated events
	Decision mode.Decision
	Err      mode.Fault // latched fault, if any
}

// sinkQueueDepth bounds interval changes waiting for slow sinks.
const sinkQueueDepth = 8

// Pipeline wires calibration, the CCS estimator, the mode controller and the
// interval binder. Ingest, IngestEvent, Tick and ClearError are serialized;
// Snapshot may be called from any goroutine without blocking them.
type Pipeline struct {
	cfg        config.Config
	calibrator *calib.Calibrator
	estimator  *ccs.Estimator
	controller *mode.Controller
	binder     *cadence.Binder
	dispatch   *cadence.Dispatcher // nil without sinks

	mu    sync.Mutex
	lastT int64
	armed bool  // at least one event accepted since start or ClearError
	heard int64 // watchdog reference: last accepted event, start or ClearError
	now   int64 // latest time seen by Tick or an accepted event
	last  Result

	snap snapshotBuffer
}

// #endregion types

// #region constructor

// New validates cfg and builds a pipeline in QUIET at t=0, the start of the
// watchdog clock. Sinks receive the initial QUIET interval and every change
// after it from a separate goroutine, in order; call Close to stop it.
func New(cfg config.Config, sinks ...cadence.Sink) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}
	cal, err := calib.NewCalibrator(cfg.Calibration.Temperature, cfg.Calibration.TauUnknown)
	if err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}
	est, err := ccs.NewEstimator(ccs.FromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}
	ctrl, err := mode.NewController(mode.FromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}

	p := &Pipeline{
		cfg:        cfg,
		calibrator: cal,
		estimator:  est,
		controller: ctrl,
		binder:     cadence.NewBinder(cadence.FromConfig(cfg)),
	}
	if len(sinks) > 0 {
		p.dispatch = cadence.NewDispatcher(sinkQueueDepth, sinks...)
		p.binder = cadence.NewBinder(cadence.FromConfig(cfg), p.dispatch)
	}
	p.last = Result{Mode: mode.Quiet, IntervalMs: cfg.BLE.IntervalQuiet}
	p.publish()
	p.bind()
	return p, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Flush waits until sinks have seen every interval change made so far.
func (p *Pipeline) Flush() {
	if p.dispatch != nil {
		p.dispatch.Flush()
	}
}

// Close delivers pending interval changes and stops sink delivery. Later
// changes still update the snapshot but reach no sink.
func (p *Pipeline) Close() {
	if p.dispatch != nil {
		p.dispatch.Close()
	}
}

// #endregion constructor

// #region ingest

// Ingest calibrates raw logits z observed at tMs and advances the pipeline.
func (p *Pipeline) Ingest(tMs int64, z calib.Logits) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.precheck(tMs); !ok {
		return r
	}

	cr, err := p.calibrator.Calibrate(z)
	if err != nil {
		log.Printf("pipeline: t=%d: %v", tMs, err)
		p.controller.Fail(tMs, mode.FaultNumericUnderflow)
	}
	r := p.step(tMs, cr.Class, cr.U)
	r.Entropy = calib.NormalizedEntropy(cr.P)
	p.last.Entropy = r.Entropy
	return r
}

// IngestEvent advances the pipeline with an already calibrated event. An
// out-of-range class id is logged and treated as Unknown.
func (p *Pipeline) IngestEvent(tMs int64, classID int, u float64) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.precheck(tMs); !ok {
		return r
	}

	cls, err := taxonomy.FromID(classID)
	if err != nil {
		log.Printf("pipeline: t=%d: %v; treating as unknown", tMs, err)
	}
	return p.step(tMs, cls, u)
}

// Tick checks the watchdog at nowMs. Silence longer than twice the QUIET
// interval latches FALLBACK. Silence is measured from the last accepted
// event, or from start (t=0) or the last ClearError when none has arrived.
func (p *Pipeline) Tick(nowMs int64) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if nowMs > p.now {
		p.now = nowMs
	}
	if nowMs-p.heard > p.cfg.BLE.WatchdogMs() {
		from := p.controller.Mode()
		if p.controller.Fail(nowMs, mode.FaultWatchdogTimeout) {
			log.Printf("pipeline: watchdog: nothing heard since t=%d (now %d)", p.heard, nowMs)
			p.last.Mode = mode.Fallback
			p.last.Err = p.controller.Fault()
			p.last.Decision = mode.Decision{From: from, To: mode.Fallback, Changed: true, Reason: "watchdog"}
			p.publish()
			return p.bind()
		}
	}
	r := p.last
	r.Changed = false
	return r
}

// ClearError re-initializes the pipeline after FALLBACK: empty window and
// QUIET entered at t=0. The watchdog restarts from the latest time seen, and
// event time may restart too. No-op outside FALLBACK.
func (p *Pipeline) ClearError() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.controller.ClearError() {
		return false
	}
	p.estimator.Reset()
	p.lastT = 0
	p.armed = false
	p.heard = p.now
	p.last = Result{Mode: mode.Quiet}
	p.publish()
	p.bind()
	log.Printf("pipeline: error cleared, restarting in %s", mode.Quiet)
	return true
}

// Snapshot returns the last published state. Safe for concurrent use.
func (p *Pipeline) Snapshot() Snapshot {
	return p.snap.load()
}

// #endregion ingest

// #region helpers

// precheck enforces non-decreasing time and the watchdog on late events.
// A regressing event is rejected and latches FALLBACK.
func (p *Pipeline) precheck(tMs int64) (Result, bool) {
	if !p.armed {
		return Result{}, true
	}
	if tMs < p.lastT {
		log.Printf("pipeline: time regression: t=%d after t=%d", tMs, p.lastT)
		if p.controller.Fail(p.lastT, mode.FaultTimeRegression) {
			p.last.Mode = mode.Fallback
			p.last.Err = p.controller.Fault()
			p.publish()
		}
		return p.bind(), false
	}
	if tMs-p.lastT > p.cfg.BLE.WatchdogMs() {
		if p.controller.Fail(tMs, mode.FaultWatchdogTimeout) {
			log.Printf("pipeline: watchdog: event at t=%d after %dms silence", tMs, tMs-p.lastT)
		}
	}
	return Result{}, true
}

// step pushes one event through the estimator and the controller. While
// FALLBACK is latched the score is still computed for telemetry.
func (p *Pipeline) step(tMs int64, cls taxonomy.Class, u float64) Result {
	est := p.estimator.Push(u, cls)
	d := p.controller.Step(tMs, est.CCS)

	p.lastT = tMs
	p.armed = true
	p.heard = tMs
	if tMs > p.now {
		p.now = tMs
	}
	p.last = Result{
		T:        tMs,
		Mode:     p.controller.Mode(),
		Class:    cls,
		U:        est.U,
		S:        est.S,
		CCS:      est.CCS,
		Decision: d,
		Err:      p.controller.Fault(),
	}
	p.publish()
	return p.bind()
}

// bind maps the current mode to an interval and queues sink notification on
// change. Sink errors are logged by the dispatcher and never affect the mode.
func (p *Pipeline) bind() Result {
	iv, changed, err := p.binder.Bind(p.controller.Mode())
	if err != nil {
		log.Printf("pipeline: %v", err)
	}
	r := p.last
	r.Mode = p.controller.Mode()
	r.IntervalMs = iv
	r.Changed = changed
	r.Err = p.controller.Fault()
	return r
}

func (p *Pipeline) publish() {
	m := p.controller.Mode()
	p.last.IntervalMs = p.binder.Table().Interval(m)
	p.snap.store(Snapshot{
		T:          p.last.T,
		CCS:        p.last.CCS,
		U:          p.last.U,
		S:          p.last.S,
		Mode:       m,
		IntervalMs: p.last.IntervalMs,
		EntryTS:    p.controller.EntryTS(),
		LastClass:  p.last.Class,
		Err:        p.controller.Fault(),
	})
}

// #endregion helpers
