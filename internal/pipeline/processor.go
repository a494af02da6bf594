// Package pipeline owns the event state machine: NEW events are enriched
// with a risk assessment and transitioned to ASSESSED or ERROR, exactly
// once, regardless of whether the trigger was a polling cycle or a push
// notification. The store's conditional update is the only authority for
// a state change; triggers are mere wake-ups.
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

// Transition outcomes, used as the events_processed metric label.
const (
	outcomeAssessed = "assessed"
	outcomeError    = "error"
	outcomeSkipped  = "skipped"
	outcomeConflict = "conflict"
)

// AlertPublisher forwards assessed events to downstream consumers.
// Publishing is best-effort: a failed alert never fails a transition.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event domain.Event) error
}

// Processor applies the per-event transition algorithm.
type Processor struct {
	store         domain.EventStore
	scorer        domain.Scorer
	alerts        AlertPublisher // nil disables alert publishing
	clock         clockwork.Clock
	scorerTimeout time.Duration
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewProcessor creates a Processor. Pass a nil alerts publisher to
// disable alerting.
func NewProcessor(store domain.EventStore, scorer domain.Scorer, alerts AlertPublisher,
	clock clockwork.Clock, scorerTimeout time.Duration,
	logger *slog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		store:         store,
		scorer:        scorer,
		alerts:        alerts,
		clock:         clock,
		scorerTimeout: scorerTimeout,
		logger:        logger,
		metrics:       metrics,
	}
}

// ProcessEvent runs one transition attempt for the given record id:
//
//  1. Re-read the event; skip unless it is still NEW.
//  2. Classify under a bounded deadline.
//  3. On a valid judgment, conditionally write ASSESSED; on any failure,
//     conditionally write ERROR with a failure summary.
//  4. A lost conditional write means another worker already transitioned
//     the record; the local result is discarded without error.
//
// The returned error reports store unavailability only — scorer failures
// are absorbed into the ERROR state and never abort a batch.
func (p *Processor) ProcessEvent(ctx context.Context, id string) error {
	event, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			// Notifications are advisory; a missing record is not a fault.
			p.metrics.EventsProcessed.WithLabelValues(outcomeSkipped).Inc()
			p.logger.Warn("event referenced by trigger not found", "id", id)
			return nil
		}
		return err
	}

	if event.Status != domain.StatusNew {
		p.metrics.EventsProcessed.WithLabelValues(outcomeSkipped).Inc()
		p.logger.Debug("event already handled, skipping", "id", id, "status", event.Status)
		return nil
	}

	assessment, classifyErr := p.classify(ctx, event)
	if classifyErr != nil {
		return p.markError(ctx, event, classifyErr)
	}
	return p.markAssessed(ctx, event, assessment)
}

// classify calls the scorer under its deadline and validates the result.
func (p *Processor) classify(ctx context.Context, event domain.Event) (domain.RiskAssessment, error) {
	cctx, cancel := context.WithTimeout(ctx, p.scorerTimeout)
	defer cancel()

	start := p.clock.Now()
	judgment, err := p.scorer.Classify(cctx, domain.ClassifyRequest{
		EventType:   event.Type,
		Description: event.Description,
		Location:    event.Location,
		Coordinates: event.Coordinates,
	})
	p.metrics.ScorerDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	severity, err := domain.ParseSeverity(judgment.Severity)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	assessment := domain.RiskAssessment{
		Severity:  severity,
		RiskScore: judgment.RiskScore,
		Reasoning: judgment.Reasoning,
	}
	if err := assessment.Validate(); err != nil {
		return domain.RiskAssessment{}, err
	}
	return assessment, nil
}

func (p *Processor) markAssessed(ctx context.Context, event domain.Event, assessment domain.RiskAssessment) error {
	updated, err := p.store.ConditionalUpdate(ctx, event.ID, domain.StatusNew, domain.StatusUpdate{
		Status:     domain.StatusAssessed,
		Risk:       &assessment,
		AssessedAt: p.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !updated {
		p.metrics.EventsProcessed.WithLabelValues(outcomeConflict).Inc()
		p.logger.Debug("lost transition race, discarding result", "id", event.ID)
		return nil
	}

	p.metrics.EventsProcessed.WithLabelValues(outcomeAssessed).Inc()
	p.logger.Info("event assessed",
		"id", event.ID,
		"event_id", event.EventID,
		"severity", assessment.Severity,
		"risk_score", assessment.RiskScore,
	)

	p.publishAlert(ctx, event, assessment)
	return nil
}

func (p *Processor) markError(ctx context.Context, event domain.Event, cause error) error {
	updated, err := p.store.ConditionalUpdate(ctx, event.ID, domain.StatusNew, domain.StatusUpdate{
		Status:       domain.StatusError,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		return err
	}
	if !updated {
		p.metrics.EventsProcessed.WithLabelValues(outcomeConflict).Inc()
		p.logger.Debug("lost transition race, discarding failure", "id", event.ID)
		return nil
	}

	p.metrics.EventsProcessed.WithLabelValues(outcomeError).Inc()
	p.logger.Warn("event marked as error",
		"id", event.ID,
		"event_id", event.EventID,
		"error", cause,
	)
	return nil
}

func (p *Processor) publishAlert(ctx context.Context, event domain.Event, assessment domain.RiskAssessment) {
	if p.alerts == nil {
		return
	}
	event.Status = domain.StatusAssessed
	event.Risk = &assessment
	event.AssessedAt = p.clock.Now().UTC()
	if err := p.alerts.PublishAlert(ctx, event); err != nil {
		p.logger.Warn("alert publish failed", "id", event.ID, "error", err)
		return
	}
	p.metrics.AlertsPublished.Inc()
}
