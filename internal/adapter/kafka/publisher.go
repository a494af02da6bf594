package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

// Publisher produces messages to one Kafka topic. The service uses two
// instances: one for ingest wake-up notifications and one for
// assessed-event alerts.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the given topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishNotification emits a wake-up message for a newly ingested event.
// The value carries the full document for observability, but consumers
// must only trust the id.
func (p *Publisher) PublishNotification(ctx context.Context, event domain.Event) error {
	msg, err := serializeEvent(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// PublishAlert emits an assessed event to the alerts topic for downstream
// communication consumers.
func (p *Publisher) PublishAlert(ctx context.Context, event domain.Event) error {
	msg, err := serializeEvent(event)
	if err != nil {
		return err
	}
	if event.Risk != nil {
		msg.Headers = append(msg.Headers,
			kafkago.Header{Key: "severity", Value: []byte(event.Risk.Severity)},
			kafkago.Header{Key: "risk_score", Value: []byte(strconv.Itoa(event.Risk.RiskScore))},
		)
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeEvent marshals an event into a Kafka message keyed by record id.
func serializeEvent(event domain.Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event %s: %w", event.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
			{Key: "status", Value: []byte(event.Status)},
		},
	}, nil
}
