package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
)

// Poller triggers transition attempts for all NEW events on a fixed
// interval. Per-event work fans out to a bounded worker pool; unbounded
// fan-out would trip scorer rate limits on a large backlog.
type Poller struct {
	store     domain.EventStore
	processor *Processor
	clock     clockwork.Clock
	interval  time.Duration
	batchSize int
	workers   int
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewPoller creates a polling loop around a Processor.
func NewPoller(store domain.EventStore, processor *Processor, clock clockwork.Clock,
	interval time.Duration, batchSize, workers int,
	logger *slog.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		store:     store,
		processor: processor,
		clock:     clock,
		interval:  interval,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one polling cycle has
// completed, or an error describing why the service is not yet ready.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("poller has not completed a cycle yet")
	}
	return nil
}

// Run executes polling cycles until the context is cancelled. Shutdown is
// graceful: in-flight transitions finish, no new ones start.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		"interval", p.interval, "batch_size", p.batchSize, "workers", p.workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	// First cycle immediately; waiting a full interval on startup only
	// delays the backlog.
	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.runCycle(ctx)
		}
	}
}

// runCycle lists NEW events and dispatches each to the worker pool,
// then waits for the batch to drain.
func (p *Poller) runCycle(ctx context.Context) {
	events, err := p.store.List(ctx, domain.StatusNew, p.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("poll cycle list failed", "error", err)
		}
		return
	}

	p.metrics.PollCycles.Inc()
	p.metrics.PollBatchSize.Observe(float64(len(events)))
	p.ready.Store(true)

	if len(events) == 0 {
		return
	}
	p.logger.Info("poll cycle found new events", "count", len(events))

	// In-flight transitions run on a detached context so shutdown lets
	// them finish; the scorer deadline still bounds each one.
	procCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for _, event := range events {
		if ctx.Err() != nil {
			break // do not start new transitions during shutdown
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := p.processor.ProcessEvent(procCtx, id); err != nil {
				p.logger.Error("event transition failed", "id", id, "error", err)
			}
		}(event.ID)
	}

	wg.Wait()
}
