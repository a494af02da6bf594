//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-safety-service/internal/adapter/redisstore"
	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

func TestRedisStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := startRedis(ctx, t)
	store := redisstore.New(client, discardLogger())

	event := domain.Event{
		ID:          "rec-1",
		EventID:     "evt_001",
		Type:        "Flood",
		Source:      "GDACS",
		Status:      domain.StatusNew,
		Coordinates: &domain.Coordinate{Lat: 23.81, Lon: 90.41},
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, event))

	t.Run("get returns the stored document", func(t *testing.T) {
		got, err := store.Get(ctx, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, "evt_001", got.EventID)
		assert.Equal(t, domain.StatusNew, got.Status)
		require.NotNil(t, got.Coordinates)
		assert.InDelta(t, 23.81, got.Coordinates.Lat, 1e-9)
	})

	t.Run("get missing id", func(t *testing.T) {
		_, err := store.Get(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})

	t.Run("list by status", func(t *testing.T) {
		events, err := store.List(ctx, domain.StatusNew, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "rec-1", events[0].ID)

		assessed, err := store.List(ctx, domain.StatusAssessed, 10)
		require.NoError(t, err)
		assert.Empty(t, assessed)
	})

	t.Run("conditional update transitions and reindexes", func(t *testing.T) {
		updated, err := store.ConditionalUpdate(ctx, "rec-1", domain.StatusNew, domain.StatusUpdate{
			Status: domain.StatusAssessed,
			Risk: &domain.RiskAssessment{
				Severity:  domain.SeverityHigh,
				RiskScore: 78,
				Reasoning: "river over flood stage",
			},
			AssessedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.True(t, updated)

		got, err := store.Get(ctx, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAssessed, got.Status)
		require.NotNil(t, got.Risk)
		assert.Equal(t, 78, got.Risk.RiskScore)

		assessed, err := store.List(ctx, domain.StatusAssessed, 10)
		require.NoError(t, err)
		require.Len(t, assessed, 1)

		fresh, err := store.List(ctx, domain.StatusNew, 10)
		require.NoError(t, err)
		assert.Empty(t, fresh, "old status index entry removed")
	})

	t.Run("conditional update loses on stale expectation", func(t *testing.T) {
		updated, err := store.ConditionalUpdate(ctx, "rec-1", domain.StatusNew, domain.StatusUpdate{
			Status:       domain.StatusError,
			ErrorMessage: "should not happen",
		})
		require.NoError(t, err)
		assert.False(t, updated, "record is no longer NEW")

		got, err := store.Get(ctx, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAssessed, got.Status, "losing write must not change state")
	})

	t.Run("conditional update on missing id", func(t *testing.T) {
		_, err := store.ConditionalUpdate(ctx, "ghost", domain.StatusNew, domain.StatusUpdate{
			Status: domain.StatusError,
		})
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})
}

// TestRedisStoreConcurrentCAS exercises the single-winner guarantee under
// real concurrency: many goroutines race the same NEW record.
func TestRedisStoreConcurrentCAS(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := startRedis(ctx, t)
	store := redisstore.New(client, discardLogger())

	require.NoError(t, store.Create(ctx, domain.Event{
		ID:     "rec-race",
		Status: domain.StatusNew,
	}))

	const racers = 10
	wins := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		go func(n int) {
			updated, err := store.ConditionalUpdate(ctx, "rec-race", domain.StatusNew, domain.StatusUpdate{
				Status: domain.StatusAssessed,
				Risk: &domain.RiskAssessment{
					Severity:  domain.SeverityMedium,
					RiskScore: n,
				},
				AssessedAt: time.Now().UTC(),
			})
			assert.NoError(t, err)
			wins <- updated
		}(i)
	}

	winners := 0
	for i := 0; i < racers; i++ {
		if <-wins {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one conditional write may succeed")

	got, err := store.Get(ctx, "rec-race")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssessed, got.Status)
}
