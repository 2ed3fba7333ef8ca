package batch

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Persistence whose behaviour can be scripted per call.
type memStore struct {
	mu      sync.Mutex
	calls   int
	batches map[string]*Batch
	writes  []*Batch

	// onUpsert runs before a write is stored; call is 1-based. A non-nil
	// error fails the write.
	onUpsert func(call int, b *Batch) error
}

func newMemStore() *memStore {
	return &memStore{batches: make(map[string]*Batch)}
}

func (s *memStore) UpsertBatch(ctx context.Context, b *Batch) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	hook := s.onUpsert
	s.mu.Unlock()

	if hook != nil {
		if err := hook(call, b); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := b.snapshot()
	s.batches[b.BatchID] = cp
	s.writes = append(s.writes, cp)
	return nil
}

func (s *memStore) RetrievePendingBatches(ctx context.Context) ([]*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Batch
	for _, b := range s.batches {
		if b.Completed == nil {
			pending = append(pending, b.snapshot())
		}
	}
	return pending, nil
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) get(batchID string) *Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[batchID]
}

// recorder captures dispatched batches and completion callbacks.
type recorder struct {
	mu         sync.Mutex
	dispatched []*Batch
	attempts   int
	completed  int

	// onDispatch runs for every attempt; call is 1-based.
	onDispatch func(call int, b *Batch) error
}

func (r *recorder) dispatch(ctx context.Context, b *Batch) error {
	r.mu.Lock()
	r.attempts++
	call := r.attempts
	hook := r.onDispatch
	r.mu.Unlock()

	if hook != nil {
		if err := hook(call, b); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, b.snapshot())
	return nil
}

func (r *recorder) complete(p *Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recorder) dispatchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dispatched)
}

func (r *recorder) completeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

func (r *recorder) batches() []*Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Batch(nil), r.dispatched...)
}

func sleepHook(d time.Duration) func(int, *Batch) error {
	return func(int, *Batch) error {
		time.Sleep(d)
		return nil
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryInitialDelayMs = 1
	return cfg
}

func propertyRecord(i int) *Record {
	return NewPropertyRecord("def-1", "inst-1", "key", strconv.Itoa(i))
}
