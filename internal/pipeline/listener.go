package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
)

const (
	initialFetchBackoff = 200 * time.Millisecond
	maxFetchBackoff     = 5 * time.Second
)

// NotificationSource yields event wake-up notifications, one per call.
type NotificationSource interface {
	Fetch(ctx context.Context) (domain.Notification, error)
}

// Listener reacts to push notifications by triggering a transition
// attempt for the referenced event. It never changes state itself; the
// Processor's conditional write decides what happens, so a notification
// for an already-handled event is a cheap no-op.
type Listener struct {
	source    NotificationSource
	processor *Processor
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewListener creates a push-notification loop around a Processor.
func NewListener(source NotificationSource, processor *Processor, clock clockwork.Clock,
	logger *slog.Logger, metrics *observability.Metrics) *Listener {
	return &Listener{
		source:    source,
		processor: processor,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run consumes notifications until the context is cancelled. Fetch
// failures are retried with capped exponential backoff so a broker
// outage does not spin the loop.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("notification listener started")

	backoff := initialFetchBackoff
	for {
		if ctx.Err() != nil {
			l.logger.Info("notification listener stopping", "reason", ctx.Err())
			return nil
		}

		notification, err := l.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if notification.Commit != nil {
				// Poison message: commit it so the group moves past it.
				l.logger.Warn("skipping undecodable notification",
					"topic", notification.Topic,
					"partition", notification.Partition,
					"offset", notification.Offset,
					"error", err,
				)
				l.commit(ctx, notification)
				continue
			}
			l.logger.Error("notification fetch failed", "error", err, "backoff", backoff)
			if !l.sleep(ctx, backoff) {
				continue
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialFetchBackoff

		l.metrics.NotificationsConsumed.Inc()
		l.handle(ctx, notification)
	}
}

// handle runs one transition attempt and commits the offset unless the
// store was unreachable, in which case the notification is left for
// redelivery.
func (l *Listener) handle(ctx context.Context, notification domain.Notification) {
	// Finish the in-flight transition even if shutdown begins mid-way.
	procCtx := context.WithoutCancel(ctx)

	if err := l.processor.ProcessEvent(procCtx, notification.EventRef); err != nil {
		l.logger.Error("notification-triggered transition failed, leaving uncommitted",
			"id", notification.EventRef, "error", err)
		return
	}
	l.commit(procCtx, notification)
}

func (l *Listener) commit(ctx context.Context, notification domain.Notification) {
	if notification.Commit == nil {
		return
	}
	if err := notification.Commit(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Warn("offset commit failed",
			"topic", notification.Topic,
			"partition", notification.Partition,
			"offset", notification.Offset,
			"error", err,
		)
	}
}

// sleep waits for the given duration, returning false if the context was
// cancelled first.
func (l *Listener) sleep(ctx context.Context, d time.Duration) bool {
	timer := l.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxFetchBackoff {
		return maxFetchBackoff
	}
	return next
}
