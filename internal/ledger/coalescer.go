package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

// recomputer is the slice of Engine the coalescer needs.
type recomputer interface {
	RecomputeLoan(ctx context.Context, loanID uuid.UUID, seq int64) error
}

// Coalescer consumes mutation events and collapses every pending event for a
// loan into one pending recompute, bounding backlog growth: a loan is queued
// at most once no matter how many events arrive while it waits. The sequence
// carried to RecomputeLoan is the highest seen, and the engine's applied-seq
// guard rejects anything older, so out-of-order delivery cannot regress
// stored aggregates.
type Coalescer struct {
	log     *logger.Logger
	engine  recomputer
	workers int

	mu      sync.Mutex
	pending map[uuid.UUID]int64
	queue   chan uuid.UUID

	wg sync.WaitGroup
}

func NewCoalescer(baseLog *logger.Logger, engine recomputer, workers int) *Coalescer {
	if workers <= 0 {
		workers = 2
	}
	return &Coalescer{
		log:     baseLog.With("service", "LedgerCoalescer"),
		engine:  engine,
		workers: workers,
		pending: make(map[uuid.UUID]int64),
		queue:   make(chan uuid.UUID, 1024),
	}
}

// Enqueue records a mutation event. Events at or below the loan's already
// pending sequence are absorbed; a loan with no pending work is queued.
func (c *Coalescer) Enqueue(ev MutationEvent) {
	if ev.LoanID == uuid.Nil {
		return
	}
	c.mu.Lock()
	prev, queued := c.pending[ev.LoanID]
	if queued {
		if ev.Seq > prev {
			c.pending[ev.LoanID] = ev.Seq
		}
		c.mu.Unlock()
		return
	}
	c.pending[ev.LoanID] = ev.Seq
	c.mu.Unlock()

	select {
	case c.queue <- ev.LoanID:
	default:
		// Queue full: drop the signal but keep the pending entry; the next
		// event for this loan re-queues it.
		c.mu.Lock()
		delete(c.pending, ev.LoanID)
		c.mu.Unlock()
		c.log.Warn("coalescer queue full, dropping recompute signal", "loan_id", ev.LoanID)
	}
}

// Pending reports how many loans currently await a recompute.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start launches the worker pool. Workers exit when ctx is cancelled; Wait
// blocks until they do.
func (c *Coalescer) Start(ctx context.Context) {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case loanID := <-c.queue:
					c.process(ctx, loanID)
				}
			}
		}()
	}
}

func (c *Coalescer) Wait() {
	c.wg.Wait()
}

// Run subscribes the coalescer to a mutation bus and starts its workers.
func (c *Coalescer) Run(ctx context.Context, bus MutationBus) error {
	if err := bus.Start(ctx, c.Enqueue); err != nil {
		return err
	}
	c.Start(ctx)
	return nil
}

func (c *Coalescer) process(ctx context.Context, loanID uuid.UUID) {
	c.mu.Lock()
	seq, ok := c.pending[loanID]
	if ok {
		delete(c.pending, loanID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if err := c.engine.RecomputeLoan(ctx, loanID, seq); err != nil {
		c.log.Error("queued recompute failed", "loan_id", loanID, "seq", seq, "error", err)
		// Re-enqueue so the loan is not left stale; the seq guard keeps the
		// retry harmless if a newer recompute lands first.
		c.Enqueue(MutationEvent{LoanID: loanID, Seq: seq})
	}
}
