// Package redisstore implements domain.EventStore on Redis. Events are
// JSON documents under event:<id> with one index set per status, so a
// polling cycle is a set read plus an MGET rather than a scan.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

const keyPrefix = "event:"

func eventKey(id string) string { return keyPrefix + id }

func statusKey(s domain.Status) string { return "events:status:" + string(s) }

// casScript performs the compare-and-set transition atomically on the
// server: re-check the stored status, rewrite the document, and move the
// id between status index sets. Returns -1 when the record is gone, 0 on
// a status mismatch (benign conflict), 1 on success.
var casScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return -1
end
local doc = cjson.decode(raw)
if doc['status'] ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('SREM', KEYS[2], ARGV[3])
redis.call('SADD', KEYS[3], ARGV[3])
return 1
`)

// Store is a Redis-backed event store.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Store around an existing Redis client.
func New(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Create persists a new event and indexes it under its status.
func (s *Store) Create(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, eventKey(event.ID), data, 0)
		pipe.SAdd(ctx, statusKey(event.Status), event.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create event %s: %w", event.ID, err)
	}
	return nil
}

// Get returns the event with the given record id.
func (s *Store) Get(ctx context.Context, id string) (domain.Event, error) {
	raw, err := s.client.Get(ctx, eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}

	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, fmt.Errorf("decode event %s: %w", id, err)
	}
	return event, nil
}

// List returns up to limit events with the given status. Index entries
// whose document has disappeared are skipped and pruned.
func (s *Store) List(ctx context.Context, status domain.Status, limit int) ([]domain.Event, error) {
	ids, err := s.client.SMembers(ctx, statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s events: %w", status, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = eventKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %s events: %w", status, err)
	}

	events := make([]domain.Event, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Stale index entry, likely an operator deletion.
			s.client.SRem(ctx, statusKey(status), ids[i])
			continue
		}
		var event domain.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			s.logger.Warn("skipping undecodable event document", "id", ids[i], "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// ConditionalUpdate transitions the record to update.Status only if its
// stored status still equals expected. The full document rewrite is safe
// because records are immutable apart from this transition: if the status
// check passes, no other field can have changed since our read.
func (s *Store) ConditionalUpdate(ctx context.Context, id string, expected domain.Status, update domain.StatusUpdate) (bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status != expected {
		return false, nil
	}

	current.Status = update.Status
	current.Risk = update.Risk
	current.AssessedAt = update.AssessedAt
	current.ErrorMessage = update.ErrorMessage

	data, err := json.Marshal(current)
	if err != nil {
		return false, fmt.Errorf("marshal event %s: %w", id, err)
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{eventKey(id), statusKey(expected), statusKey(update.Status)},
		string(expected), string(data), id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("conditional update %s: %w", id, err)
	}

	switch res {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, domain.ErrEventNotFound
	}
}
