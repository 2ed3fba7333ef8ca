package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/metrics"
)

// Manager is the registry of active processors. It is the only place that
// creates and retires processors, so at most one exists per key.
//
// Processors are created on the first Add for a key and retired once they
// drain to idle, so the registry only holds keys with work in progress.
// Every processor shares the Manager's persistence, Dispatch Port and
// configuration.
type Manager struct {
	store    Persistence  // Shared by all processors; read by Start
	dispatch DispatchFunc // Dispatch Port handed to every processor
	cfg      *Config      // Batching limits applied to every key

	// Lifecycle management
	ctx    context.Context    // Parent of every processor context
	cancel context.CancelFunc // Cancelled by Stop

	mu         sync.Mutex
	processors map[Key]*Processor // Active processors, one per key

	wg sync.WaitGroup // Recovery goroutines started by Start
}

// NewManager creates an empty processor registry.
//
// No processors exist and nothing is dispatched until Start recovers
// pending batches or the first Add arrives. A nil cfg falls back to
// DefaultConfig. The Manager owns a background context that outlives
// individual requests; Stop cancels it.
func NewManager(store Persistence, dispatch DispatchFunc, cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:      store,
		dispatch:   dispatch,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		processors: make(map[Key]*Processor),
	}
}

// Start loads every batch whose completed field is null, groups them by
// (author, type) key and hands each group, oldest first, to a fresh
// processor.
//
// The recovered batches are queued before Start returns, so a record added
// afterwards for the same key always lands in a batch dispatched after them.
// Only the wait for their completion runs in the background; Stop cancels
// it and leaves whatever did not complete persisted for the next Start.
//
// Start must be called once, before the first Add. It fails only when the
// pending batches cannot be read.
func (m *Manager) Start(ctx context.Context) error {
	batches, err := m.store.RetrievePendingBatches(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve pending batches: %w", err)
	}

	groups := make(map[Key][]*Batch)
	var keys []Key
	for _, b := range batches {
		if b.IsCompleted() {
			continue
		}
		k := b.Key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], b)
	}

	for _, k := range keys {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Created.Before(group[j].Created)
		})

		p := m.processor(k)
		recovered, err := p.enqueueRecovered(group)
		if err != nil {
			logging.Error("BatchManager: Recovery of %s failed: %v", k, err)
			continue
		}

		m.wg.Add(1)
		go func(k Key, recovered []*assembly) {
			defer m.wg.Done()
			err := awaitRecovered(m.ctx, recovered)
			switch {
			case err == nil:
				logging.Info("BatchManager: Recovered %d batches for %s", len(recovered), k)
			case !errors.Is(err, context.Canceled):
				logging.Error("BatchManager: Recovery of %s failed: %v", k, err)
			}
		}(k, recovered)
	}

	if len(keys) > 0 {
		logging.Info("BatchManager: Recovering %d pending batches across %d keys", len(batches), len(keys))
	}
	return nil
}

// Add routes rec to the processor for (author, typ), creating it on demand,
// and returns the ID of the batch the record was admitted to.
//
// Records for different keys never share a batch and never wait on each
// other. A processor can retire between lookup and admission when it drains
// at that moment; Add then looks the key up again and lands on a fresh
// processor, so callers never see ErrProcessorRetired.
//
// Errors are those of Processor.Add: an invalid record, an
// AdmissionTimeoutError, a persistence failure, or ctx.Err().
func (m *Manager) Add(ctx context.Context, author, typ string, rec *Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	if author == "" || typ == "" {
		return "", fmt.Errorf("batch author and type are required")
	}

	k := Key{Author: author, Type: typ}
	for {
		batchID, err := m.processor(k).Add(ctx, rec)
		if errors.Is(err, ErrProcessorRetired) {
			continue
		}
		return batchID, err
	}
}

// processor returns the active processor for k, creating it if needed.
func (m *Manager) processor(k Key) *Processor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.processors[k]; ok {
		return p
	}

	p := NewProcessor(m.ctx, k.Author, k.Type, m.store, m.dispatch, m.processorComplete, m.cfg)
	m.processors[k] = p
	metrics.ActiveProcessors.Set(float64(len(m.processors)))
	logging.Debug("BatchManager: Created processor for %s", k)
	return p
}

// processorComplete retires p if it is still idle. A processor that picked
// up new work after draining stays registered.
func (m *Manager) processorComplete(p *Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processors[p.Key()] != p {
		return
	}
	if !p.retire() {
		return
	}
	delete(m.processors, p.Key())
	metrics.ActiveProcessors.Set(float64(len(m.processors)))
	logging.Debug("BatchManager: Retired processor for %s", p.Key())
}

// Active returns the number of registered processors.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processors)
}

// Stats returns the state of every registered processor, sorted by key.
func (m *Manager) Stats() []ProcessorStats {
	m.mu.Lock()
	procs := make([]*Processor, 0, len(m.processors))
	for _, p := range m.processors {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	stats := make([]ProcessorStats, 0, len(procs))
	for _, p := range procs {
		stats = append(stats, p.Stats())
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Author != stats[j].Author {
			return stats[i].Author < stats[j].Author
		}
		return stats[i].Type < stats[j].Type
	})
	return stats
}

// Stop cancels dispatch retries and waits for recovery to unwind.
//
// A dispatch call already in progress is not interrupted, but no further
// retry is attempted once Stop runs. Batches that did not complete remain
// persisted and are recovered by the next Start. Add must not be called
// after Stop.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	logging.Info("BatchManager: Stopped")
}
