package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crisis-safety-service/internal/config"
	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

// Reader consumes event wake-up notifications from the notify topic.
// It implements pipeline.NotificationSource.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the notify topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaNotifyTopic,
		GroupID: cfg.KafkaGroupID,
	})
	return &Reader{reader: r, logger: logger}
}

// Fetch blocks until a notification arrives or the context is cancelled.
// Offsets are committed via the returned Commit closure so the caller can
// acknowledge after the wake-up has been acted on. A malformed message
// still carries a usable Commit alongside the error, so the caller can
// acknowledge and move past it instead of refetching it forever.
func (r *Reader) Fetch(ctx context.Context) (domain.Notification, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("fetch notification: %w", err)
	}
	return mapMessageToNotification(r.reader, msg)
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// notificationPayload is the minimum message contract: a record id.
// Publishers may include the full event document; only the id is read.
type notificationPayload struct {
	ID string `json:"id"`
}

func mapMessageToNotification(reader *kafkago.Reader, msg kafkago.Message) (domain.Notification, error) {
	n := domain.Notification{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return reader.CommitMessages(ctx, msg)
		},
	}

	var payload notificationPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return n, fmt.Errorf("decode notification at %s/%d@%d: %w",
			msg.Topic, msg.Partition, msg.Offset, err)
	}
	if payload.ID == "" {
		return n, fmt.Errorf("notification at %s/%d@%d carries no event id",
			msg.Topic, msg.Partition, msg.Offset)
	}

	n.EventRef = payload.ID
	return n, nil
}
