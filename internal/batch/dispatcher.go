package batch

import (
	"time"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/metrics"
)

// dispatchBatch closes the open batch and hands it to the dispatch loop. It
// is a no-op returning false when no batch is open, so a timer and the
// max-records path firing in the same instant dispatch only once.
func (p *Processor) dispatchBatch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked("dispatch requested")
}

// run drains the queue of closed batches one at a time, in order. It exits
// when the queue is empty (closeLocked and Init restart it) or when the
// processor context ends.
//
// Exactly one run goroutine exists per processor while dispatching is set,
// which is what keeps a key's batches strictly sequential at the Dispatch
// Port. Popping a batch off the queue wakes blocked Add callers, since an
// empty queue lets a new batch open while this one dispatches.
//
// On a clean drain with no open batch the idle callback fires, giving the
// Manager its chance to retire the processor.
func (p *Processor) run() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.dispatching = false
			idle := p.open == nil
			p.mu.Unlock()

			if idle && p.onComplete != nil {
				p.onComplete(p)
			}
			return
		}

		a := p.queue[0]
		p.queue = p.queue[1:]
		p.current = a
		p.signalAdmitLocked()
		p.mu.Unlock()

		err := p.drain(a)

		p.mu.Lock()
		p.current = nil
		if err != nil {
			// Shutdown: unfinished batches stay persisted for recovery.
			p.dispatching = false
			p.mu.Unlock()
			logging.Warn("BatchProcessor(%s): Stopped dispatching, batch %s left for recovery: %v",
				p.key, logging.FormatID(a.batch.BatchID), err)
			return
		}
		p.mu.Unlock()
	}
}

// drain waits for the batch's pending writes, re-persists records whose
// write failed, then dispatches the batch.
func (p *Processor) drain(a *assembly) error {
	p.waitSettled(a)

	p.mu.Lock()
	dirty := a.persisted < len(a.batch.Records)
	p.mu.Unlock()

	b := a.batch
	if dirty {
		err := p.retry("persist", b.BatchID, func() error {
			return p.store.UpsertBatch(p.ctx, b.snapshot())
		})
		if err != nil {
			return err
		}
	}

	if err := p.processBatch(b); err != nil {
		return err
	}
	close(a.done)
	return nil
}

// processBatch dispatches b until it succeeds, stamps it completed and
// persists the final state. Dispatch failures are logged per attempt and
// never returned; the only error is the processor context ending.
//
// The Dispatch Port may fill in the batch hash and receipt on b; those land
// in the same write that sets Completed, so a batch stored as completed
// always carries its dispatch results.
func (p *Processor) processBatch(b *Batch) error {
	start := time.Now()

	err := p.retry("dispatch", b.BatchID, func() error {
		return p.dispatch(p.ctx, b)
	})
	if err != nil {
		return err
	}

	completed := time.Now().UTC()
	b.Completed = &completed

	err = p.retry("persist completed", b.BatchID, func() error {
		return p.store.UpsertBatch(p.ctx, b.snapshot())
	})
	if err != nil {
		return err
	}

	metrics.BatchesDispatched.WithLabelValues(p.key.Type).Inc()
	metrics.BatchSize.Observe(float64(len(b.Records)))
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	logging.Info("BatchProcessor(%s): Completed batch %s with %d records in %v",
		p.key, logging.FormatID(b.BatchID), len(b.Records), time.Since(start).Round(time.Millisecond))
	return nil
}

// retry runs fn with exponential backoff until it succeeds or the processor
// context ends.
//
// Delays start at RetryInitialDelayMs and double, capped at RetryMaxDelayMs
// when that is set.
// There is no attempt limit: a batch blocks its key until it dispatches or
// the node shuts down.
func (p *Processor) retry(op, batchID string, fn func() error) error {
	delay := p.cfg.GetRetryInitialDelay()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctxErr := p.ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		p.recordFailure(op, batchID, attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-p.ctx.Done():
			timer.Stop()
			return p.ctx.Err()
		}
		delay = nextBackoff(delay, p.cfg.GetRetryMaxDelay())
	}
}

// recordFailure counts a failed attempt and logs it, escalating to ERROR
// once RetryAlertAttempts consecutive attempts have failed.
func (p *Processor) recordFailure(op, batchID string, attempt int, delay time.Duration, err error) {
	if op == "dispatch" {
		metrics.DispatchFailures.WithLabelValues(p.key.Type).Inc()
	} else {
		metrics.PersistenceFailures.WithLabelValues(p.key.Type).Inc()
	}

	if p.cfg.RetryAlertAttempts > 0 && attempt >= p.cfg.RetryAlertAttempts {
		metrics.DispatchAlerts.WithLabelValues(p.key.Type).Inc()
		logging.Error("BatchProcessor(%s): %s of batch %s failed (attempt %d, retrying in %v): %v",
			p.key, op, logging.FormatID(batchID), attempt, delay, err)
		return
	}
	logging.Warn("BatchProcessor(%s): %s of batch %s failed (attempt %d, retrying in %v): %v",
		p.key, op, logging.FormatID(batchID), attempt, delay, err)
}

// nextBackoff doubles d, clamped to max when max is positive. Doubling stops
// once it would overflow.
func nextBackoff(d, max time.Duration) time.Duration {
	next := d * 2
	if next <= d {
		next = d
	}
	if max > 0 && next > max {
		return max
	}
	return next
}
