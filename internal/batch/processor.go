package batch

import (
	"context"
	"sync"
	"time"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/metrics"
	"github.com/concave-dev/trail/internal/utils"
)

// persistOp is one batch write that any number of Add callers can wait on.
type persistOp struct {
	done chan struct{}
	err  error
}

func newPersistOp() *persistOp {
	return &persistOp{done: make(chan struct{})}
}

// assembly tracks a batch together with its write coalescing state.
//
// At most one write per batch is in flight. Callers arriving while it runs
// all join the single follow-up write, which snapshots the batch when it
// starts and therefore covers every record appended in the meantime.
type assembly struct {
	batch     *Batch
	inflight  *persistOp
	next      *persistOp
	persisted int // records covered by the last successful write
	done      chan struct{}
}

func newAssembly(b *Batch, persisted int) *assembly {
	return &assembly{batch: b, persisted: persisted, done: make(chan struct{})}
}

// Processor accumulates and dispatches batches for one (author, type) key.
//
// A processor holds at most one OPEN batch plus an ordered queue of closed
// batches drained by a single dispatch loop, so batches for a key reach the
// Dispatch Port one at a time and in creation order. A new batch may open
// while the previous one is dispatching, but not while a closed batch is
// still queued behind it; Add callers wait up to the add timeout for that.
type Processor struct {
	key        Key          // (author, type) this processor owns
	cfg        *Config      // Size, timeout and retry limits
	store      Persistence  // Where batch snapshots are written
	dispatch   DispatchFunc // Hands a closed batch to the Dispatch Port
	onComplete CompleteFunc // Optional idle callback, used by the Manager

	// ctx bounds background work: persistence writes and dispatch retries.
	ctx context.Context

	// Batch state, guarded by mu
	mu          sync.Mutex
	open        *assembly   // Accepting records; nil between batches
	queue       []*assembly // Closed batches waiting for the dispatch loop
	current     *assembly   // Batch being dispatched
	dispatching bool        // Dispatch loop goroutine is running
	retired     bool        // Manager removed this processor; no new work

	// admit is closed and replaced whenever admission may have become
	// possible, waking every Add blocked on a full queue.
	admit chan struct{}

	// Close triggers for the open batch
	arrivalTimer *time.Timer // Re-armed on every record
	overallTimer *time.Timer // Armed once when the batch opens
	arrivalSeq   uint64      // Invalidates arrival timers that fired late
}

// NewProcessor creates a processor for one (author, type) key.
//
// The processor starts idle: no goroutine runs until the first record is
// admitted or Init queues recovered batches. ctx is held for the lifetime of
// the processor and bounds persistence writes and dispatch retries that
// outlive any single Add call; cancelling it makes pending retries give up.
//
// onComplete may be nil. When set it is called, without the processor lock
// held, every time the processor drains to idle with nothing open or
// queued. The Manager uses it to retire idle processors. A nil cfg falls
// back to DefaultConfig.
func NewProcessor(ctx context.Context, author, typ string, store Persistence, dispatch DispatchFunc, onComplete CompleteFunc, cfg *Config) *Processor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Processor{
		key:        Key{Author: author, Type: typ},
		cfg:        cfg,
		store:      store,
		dispatch:   dispatch,
		onComplete: onComplete,
		ctx:        ctx,
		admit:      make(chan struct{}),
	}
}

// Author returns the author half of the processor key.
func (p *Processor) Author() string { return p.key.Author }

// Type returns the record type half of the processor key.
func (p *Processor) Type() string { return p.key.Type }

// Key returns the processor key.
func (p *Processor) Key() Key { return p.key }

// Add appends rec to the open batch, opening one if needed, and returns the
// ID of that batch once a persistence write covering the record has landed.
//
// Admission is allowed while a batch is open, or when nothing is queued
// for dispatch. A previous batch may still be dispatching when a new one
// opens, which keeps the key flowing without letting closed batches pile up.
// While a closed batch waits in the queue, Add blocks until the dispatch
// loop picks it up.
//
// The open batch closes when it reaches BatchMaxRecords, when no record
// arrives for BatchTimeoutArrivalMs, or when it has been open for
// BatchTimeoutOverallMs, whichever comes first. Concurrent callers adding to
// the same batch share persistence writes, so a burst of records costs at
// most two writes per batch in flight.
//
// Add fails with an AdmissionTimeoutError when no batch could accept the
// record within the add timeout, with the persistence error when the write
// covering the record failed, and with ctx.Err() when ctx ends first. A
// failed write leaves the record in the batch; it is written again by the
// next write or before dispatch.
func (p *Processor) Add(ctx context.Context, rec *Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	deadline := time.NewTimer(p.cfg.GetAddTimeout())
	defer deadline.Stop()

	p.mu.Lock()
	for !p.canAdmitLocked() {
		if p.retired {
			p.mu.Unlock()
			return "", ErrProcessorRetired
		}
		wait := p.admit
		p.mu.Unlock()

		select {
		case <-wait:
		case <-deadline.C:
			metrics.AdmissionTimeouts.WithLabelValues(p.key.Type).Inc()
			logging.Warn("BatchProcessor(%s): Timed out waiting %v for batch admission", p.key, p.cfg.GetAddTimeout())
			return "", &AdmissionTimeoutError{Author: p.key.Author, Type: p.key.Type, Timeout: p.cfg.GetAddTimeout()}
		case <-ctx.Done():
			return "", ctx.Err()
		}

		p.mu.Lock()
	}

	if p.open == nil {
		p.openLocked()
	}
	a := p.open
	a.batch.Records = append(a.batch.Records, rec)
	batchID := a.batch.BatchID
	metrics.RecordsAdded.WithLabelValues(p.key.Type).Inc()

	op := p.schedulePersistLocked(a)

	if len(a.batch.Records) >= p.cfg.BatchMaxRecords {
		p.closeLocked("full")
	} else {
		p.resetArrivalTimerLocked(batchID)
	}
	p.mu.Unlock()

	select {
	case <-op.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if op.err != nil {
		return "", op.err
	}
	return batchID, nil
}

// canAdmitLocked reports whether a record can be appended now: either a
// batch is open, or a new one may open because no closed batch is waiting.
func (p *Processor) canAdmitLocked() bool {
	if p.retired {
		return false
	}
	return p.open != nil || len(p.queue) == 0
}

// signalAdmitLocked wakes every caller waiting for admission.
func (p *Processor) signalAdmitLocked() {
	close(p.admit)
	p.admit = make(chan struct{})
}

// newBatch allocates an empty batch for the processor key.
func (p *Processor) newBatch() *Batch {
	return &Batch{
		BatchID: utils.GenerateID(),
		Type:    p.key.Type,
		Author:  p.key.Author,
		Created: time.Now().UTC(),
		Records: []*Record{},
	}
}

// openLocked creates the open batch and starts its overall timer. The
// arrival timer is (re)started by every Add.
func (p *Processor) openLocked() {
	a := newAssembly(p.newBatch(), 0)
	p.open = a

	batchID := a.batch.BatchID
	p.overallTimer = time.AfterFunc(p.cfg.GetOverallTimeout(), func() {
		p.closeOnTimeout(batchID, 0, false)
	})
	logging.Debug("BatchProcessor(%s): Opened batch %s", p.key, logging.FormatID(batchID))
}

func (p *Processor) resetArrivalTimerLocked(batchID string) {
	if p.arrivalTimer != nil {
		p.arrivalTimer.Stop()
	}
	p.arrivalSeq++
	seq := p.arrivalSeq
	p.arrivalTimer = time.AfterFunc(p.cfg.GetArrivalTimeout(), func() {
		p.closeOnTimeout(batchID, seq, true)
	})
}

// closeOnTimeout closes the open batch if the timer that fired still belongs
// to it. Stale arrival timers are recognised by their sequence number.
func (p *Processor) closeOnTimeout(batchID string, seq uint64, arrival bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open == nil || p.open.batch.BatchID != batchID {
		return
	}
	if arrival {
		if seq != p.arrivalSeq {
			return
		}
		p.closeLocked("arrival timeout")
		return
	}
	p.closeLocked("overall timeout")
}

func (p *Processor) stopTimersLocked() {
	if p.arrivalTimer != nil {
		p.arrivalTimer.Stop()
		p.arrivalTimer = nil
	}
	if p.overallTimer != nil {
		p.overallTimer.Stop()
		p.overallTimer = nil
	}
}

// closeLocked moves the open batch to the dispatch queue and makes sure the
// dispatch loop is running. Returns false when no batch was open.
func (p *Processor) closeLocked(reason string) bool {
	a := p.open
	if a == nil {
		return false
	}

	p.stopTimersLocked()
	p.open = nil
	p.queue = append(p.queue, a)
	logging.Debug("BatchProcessor(%s): Closed batch %s with %d records (%s)",
		p.key, logging.FormatID(a.batch.BatchID), len(a.batch.Records), reason)

	p.startLoopLocked()
	return true
}

func (p *Processor) startLoopLocked() {
	if p.dispatching {
		return
	}
	p.dispatching = true
	go p.run()
}

// schedulePersistLocked returns the write the caller must wait on: a new
// write when none is in flight, otherwise the single follow-up write.
func (p *Processor) schedulePersistLocked(a *assembly) *persistOp {
	if a.inflight == nil {
		op := newPersistOp()
		a.inflight = op
		go p.persist(a, op, a.batch.snapshot())
		return op
	}
	if a.next == nil {
		a.next = newPersistOp()
	}
	return a.next
}

// persist runs one write and, when callers joined a follow-up, starts it
// with a fresh snapshot of the batch.
func (p *Processor) persist(a *assembly, op *persistOp, snap *Batch) {
	err := p.store.UpsertBatch(p.ctx, snap)

	p.mu.Lock()
	defer p.mu.Unlock()

	op.err = err
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues(p.key.Type).Inc()
		logging.Error("BatchProcessor(%s): Failed to persist batch %s: %v",
			p.key, logging.FormatID(snap.BatchID), err)
	} else if len(snap.Records) > a.persisted {
		a.persisted = len(snap.Records)
	}
	close(op.done)

	a.inflight = nil
	if a.next != nil {
		next := a.next
		a.next = nil
		a.inflight = next
		go p.persist(a, next, a.batch.snapshot())
	}
}

// waitSettled blocks until no write for a is in flight or scheduled. Only
// called for closed batches, which cannot gain new writes.
func (p *Processor) waitSettled(a *assembly) {
	for {
		p.mu.Lock()
		op := a.next
		if op == nil {
			op = a.inflight
		}
		p.mu.Unlock()

		if op == nil {
			return
		}
		<-op.done
	}
}

// Init seeds the processor with batches that were persisted but never
// completed, typically found at startup, and blocks until all of them have
// completed or ctx ends.
//
// Recovered batches are queued ahead of any batch created later, as already
// closed, so no record is ever appended to them and they reach the Dispatch
// Port in the order given. Callers pass them sorted by creation time.
// Completed batches in the slice are skipped.
//
// Init fails with ErrProcessorRetired when the processor was retired before
// the batches could be queued.
func (p *Processor) Init(ctx context.Context, batches []*Batch) error {
	recovered, err := p.enqueueRecovered(batches)
	if err != nil {
		return err
	}
	return awaitRecovered(ctx, recovered)
}

// enqueueRecovered queues the uncompleted batches at the head of the
// dispatch queue and starts the dispatch loop. It does not wait, so a
// caller holding back new work until it returns gets creation order.
func (p *Processor) enqueueRecovered(batches []*Batch) ([]*assembly, error) {
	var recovered []*assembly
	for _, b := range batches {
		if b.IsCompleted() {
			logging.Debug("BatchProcessor(%s): Skipping completed batch %s", p.key, logging.FormatID(b.BatchID))
			continue
		}
		logging.Info("BatchProcessor(%s): Recovering batch %s with %d records",
			p.key, logging.FormatID(b.BatchID), len(b.Records))
		recovered = append(recovered, newAssembly(b, len(b.Records)))
	}
	if len(recovered) == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retired {
		return nil, ErrProcessorRetired
	}
	p.queue = append(recovered, p.queue...)
	p.startLoopLocked()
	return recovered, nil
}

// awaitRecovered blocks until every recovered batch has completed.
func awaitRecovered(ctx context.Context, recovered []*assembly) error {
	for _, a := range recovered {
		select {
		case <-a.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// retire marks an idle processor as retired and reports whether it did.
// A processor that gained work since it reported completion stays active.
func (p *Processor) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open != nil || len(p.queue) > 0 || p.dispatching {
		return false
	}
	p.retired = true
	p.signalAdmitLocked()
	return true
}

// ProcessorStats is a point-in-time view of a processor.
type ProcessorStats struct {
	Author      string `json:"author"`
	Type        string `json:"type"`
	OpenBatchID string `json:"openBatchID,omitempty"`
	OpenRecords int    `json:"openRecords"`
	Queued      int    `json:"queued"`
	Dispatching string `json:"dispatching,omitempty"`
}

// Stats returns the current state of the processor.
func (p *Processor) Stats() ProcessorStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := ProcessorStats{
		Author: p.key.Author,
		Type:   p.key.Type,
		Queued: len(p.queue),
	}
	if p.open != nil {
		stats.OpenBatchID = p.open.batch.BatchID
		stats.OpenRecords = len(p.open.batch.Records)
	}
	if p.current != nil {
		stats.Dispatching = p.current.batch.BatchID
	}
	return stats
}

// Pending returns the number of batches not yet completed: the open batch,
// queued batches and the one being dispatched.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	if p.open != nil {
		n++
	}
	if p.current != nil {
		n++
	}
	return n
}
