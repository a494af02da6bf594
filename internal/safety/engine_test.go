package safety

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
)

// At the equator one degree is ~111.19 km, which makes test distances
// easy to place relative to the tier thresholds.

type fakeStore struct {
	events []domain.Event
	err    error
}

func (s *fakeStore) Create(context.Context, domain.Event) error { return nil }

func (s *fakeStore) Get(context.Context, string) (domain.Event, error) {
	return domain.Event{}, domain.ErrEventNotFound
}

func (s *fakeStore) List(_ context.Context, status domain.Status, _ int) ([]domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Event
	for _, e := range s.events {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ConditionalUpdate(context.Context, string, domain.Status, domain.StatusUpdate) (bool, error) {
	return false, nil
}

type fakeMaps struct {
	routes    []domain.Route
	places    map[string][]domain.Place
	routesErr error
	placesErr error
}

func (m *fakeMaps) FindNearby(_ context.Context, _ domain.Coordinate, category string, _ float64, _ int) ([]domain.Place, error) {
	if m.placesErr != nil {
		return nil, m.placesErr
	}
	return m.places[category], nil
}

func (m *fakeMaps) ComputeRoutes(context.Context, domain.Coordinate, domain.Coordinate, string, bool) ([]domain.Route, error) {
	if m.routesErr != nil {
		return nil, m.routesErr
	}
	return m.routes, nil
}

func assessed(id string, lat, lon float64, score int) domain.Event {
	return domain.Event{
		ID:          id,
		EventID:     "evt_" + id,
		Type:        "Wildfire",
		Status:      domain.StatusAssessed,
		Coordinates: &domain.Coordinate{Lat: lat, Lon: lon},
		Risk: &domain.RiskAssessment{
			Severity:  domain.SeverityHigh,
			RiskScore: score,
		},
	}
}

func newTestEngine(store domain.EventStore, maps domain.MapProvider) *Engine {
	return NewEngine(store, maps, Config{
		ThreatRadiusKM:    50,
		MinRiskScore:      50,
		CheckRadiusKM:     25,
		RouteSampleStride: 10,
		ResourceLimit:     3,
	}, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
}

func TestNearbyThreats_FiltersAndSorts(t *testing.T) {
	store := &fakeStore{events: []domain.Event{
		assessed("far", 0, 0.3, 90),      // ~33 km
		assessed("near", 0, 0.1, 80),     // ~11 km
		assessed("weak", 0, 0.05, 20),    // below score threshold
		assessed("distant", 1.0, 0, 95),  // ~111 km, outside radius
		{ID: "raw", Status: domain.StatusNew, Coordinates: &domain.Coordinate{Lat: 0, Lon: 0.01}},
	}}
	engine := newTestEngine(store, nil)

	report, err := engine.NearbyThreats(context.Background(), ThreatQuery{
		Center:       domain.Coordinate{Lat: 0, Lon: 0},
		RadiusKM:     50,
		MinRiskScore: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, "threats_detected", report.Status)
	require.Len(t, report.Threats, 2)
	assert.Equal(t, "near", report.Threats[0].EventRef)
	assert.Equal(t, "far", report.Threats[1].EventRef)
	assert.InDelta(t, 11.1, report.Threats[0].DistanceKM, 0.2)
	assert.Less(t, report.Threats[0].DistanceKM, report.Threats[1].DistanceKM)
}

func TestNearbyThreats_EmptyIsSafe(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, nil)

	report, err := engine.NearbyThreats(context.Background(), ThreatQuery{
		Center: domain.Coordinate{Lat: 40, Lon: -74},
	})
	require.NoError(t, err)
	assert.Equal(t, "safe", report.Status)
	assert.Empty(t, report.Threats)
	assert.Equal(t, 50.0, report.RadiusKM, "zero radius falls back to the configured default")
}

func TestNearbyThreats_NegativeThresholdFallsBackToDefault(t *testing.T) {
	store := &fakeStore{events: []domain.Event{
		assessed("strong", 0, 0.1, 55),
		assessed("weak", 0, 0.1, 45), // below the configured default of 50
	}}
	engine := newTestEngine(store, nil)

	report, err := engine.NearbyThreats(context.Background(), ThreatQuery{
		Center:       domain.Coordinate{Lat: 0, Lon: 0},
		MinRiskScore: -1,
	})
	require.NoError(t, err)
	require.Len(t, report.Threats, 1)
	assert.Equal(t, "strong", report.Threats[0].EventRef)
}

func TestNearbyThreats_InvalidCenter(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, nil)

	_, err := engine.NearbyThreats(context.Background(), ThreatQuery{
		Center: domain.Coordinate{Lat: 95, Lon: 400},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestNearbyThreats_StoreFailure(t *testing.T) {
	engine := newTestEngine(&fakeStore{err: errors.New("connection refused")}, nil)

	_, err := engine.NearbyThreats(context.Background(), ThreatQuery{
		Center: domain.Coordinate{Lat: 0, Lon: 0},
	})
	assert.Error(t, err)
}

func TestAnalyzeRoutes_ClassifiesEachCandidate(t *testing.T) {
	// One threat ~18 km east of the origin.
	store := &fakeStore{events: []domain.Event{assessed("fire", 0, 0.162, 85)}}
	maps := &fakeMaps{routes: []domain.Route{
		{
			Summary:         "via coastal road",
			DurationMinutes: 25,
			Points:          []domain.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}},
		},
		{
			Summary:         "via inland highway",
			DurationMinutes: 40,
			Points:          []domain.Coordinate{{Lat: 0, Lon: 0.9}, {Lat: 0, Lon: 1.0}},
		},
	}}
	engine := newTestEngine(store, maps)

	report, err := engine.AnalyzeRoutes(context.Background(), RouteQuery{
		Origin:       domain.Coordinate{Lat: 0, Lon: 0},
		Destination:  domain.Coordinate{Lat: 0, Lon: 1},
		AvoidThreats: true,
		Alternatives: true,
	})
	require.NoError(t, err)

	require.Len(t, report.Routes, 2)
	// Closest sampled point of route 0 is ~17 km from the threat.
	assert.Equal(t, domain.SafetyCaution, report.Routes[0].SafetyLevel)
	// Route 1 never comes within 50 km of the threat.
	assert.Equal(t, domain.SafetySafe, report.Routes[1].SafetyLevel)
	assert.Equal(t, 1, report.RecommendedIndex, "avoid_threats prefers the safer tier")
	assert.Equal(t, 1, report.ThreatCount)
}

func TestAnalyzeRoutes_ThreatFarFromOriginStillCounts(t *testing.T) {
	// Threat ~222 km from the origin, sitting right at the route's far
	// end. No radius around the origin may hide it from route scoring.
	store := &fakeStore{events: []domain.Event{assessed("quake", 0, 2.0, 85)}}
	maps := &fakeMaps{routes: []domain.Route{{
		Summary:         "via the valley road",
		DurationMinutes: 150,
		Points: []domain.Coordinate{
			{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1.0}, {Lat: 0, Lon: 2.0},
		},
	}}}
	engine := newTestEngine(store, maps)

	report, err := engine.AnalyzeRoutes(context.Background(), RouteQuery{
		Origin:      domain.Coordinate{Lat: 0, Lon: 0},
		Destination: domain.Coordinate{Lat: 0, Lon: 2},
	})
	require.NoError(t, err)

	require.Len(t, report.Routes, 1)
	assert.Equal(t, 1, report.ThreatCount)
	assert.Equal(t, domain.SafetyDanger, report.Routes[0].SafetyLevel)
	assert.True(t, report.Routes[0].HasThreatData)
	require.NotNil(t, report.Routes[0].NearestThreatKM)
	assert.InDelta(t, 0, *report.Routes[0].NearestThreatKM, 0.1)
}

func TestAnalyzeRoutes_DefaultRecommendationIsProviderFirst(t *testing.T) {
	store := &fakeStore{events: []domain.Event{assessed("fire", 0, 0.162, 85)}}
	maps := &fakeMaps{routes: []domain.Route{
		{Summary: "risky default", Points: []domain.Coordinate{{Lat: 0, Lon: 0.15}}},
		{Summary: "safer detour", Points: []domain.Coordinate{{Lat: 0, Lon: 1.0}}},
	}}
	engine := newTestEngine(store, maps)

	report, err := engine.AnalyzeRoutes(context.Background(), RouteQuery{
		Origin:      domain.Coordinate{Lat: 0, Lon: 0},
		Destination: domain.Coordinate{Lat: 0, Lon: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.RecommendedIndex)
}

func TestAnalyzeRoutes_TieBrokenByDuration(t *testing.T) {
	store := &fakeStore{} // no threats: everything classifies safe
	maps := &fakeMaps{routes: []domain.Route{
		{Summary: "long", DurationMinutes: 40, Points: []domain.Coordinate{{Lat: 0, Lon: 0}}},
		{Summary: "short", DurationMinutes: 22, Points: []domain.Coordinate{{Lat: 0, Lon: 0}}},
	}}
	engine := newTestEngine(store, maps)

	report, err := engine.AnalyzeRoutes(context.Background(), RouteQuery{
		Origin:       domain.Coordinate{Lat: 0, Lon: 0},
		Destination:  domain.Coordinate{Lat: 1, Lon: 1},
		AvoidThreats: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.RecommendedIndex)
	for _, route := range report.Routes {
		assert.Equal(t, domain.SafetySafe, route.SafetyLevel)
		assert.False(t, route.HasThreatData)
		assert.Nil(t, route.NearestThreatKM)
	}
}

func TestAnalyzeRoutes_ProviderUnavailable(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeMaps{routesErr: domain.ErrMapsUnavailable})

	_, err := engine.AnalyzeRoutes(context.Background(), RouteQuery{
		Origin:      domain.Coordinate{Lat: 0, Lon: 0},
		Destination: domain.Coordinate{Lat: 1, Lon: 1},
	})
	assert.ErrorIs(t, err, domain.ErrMapsUnavailable)
}

func TestAnalyzeRoutes_NilProvider(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, nil)

	_, err := engine.AnalyzeRoutes(context.Background(), RouteQuery{
		Origin:      domain.Coordinate{Lat: 0, Lon: 0},
		Destination: domain.Coordinate{Lat: 1, Lon: 1},
	})
	assert.ErrorIs(t, err, domain.ErrMapsUnavailable)
}

func TestCheckLocation_NoThreatsIsSafe(t *testing.T) {
	maps := &fakeMaps{places: map[string][]domain.Place{
		"hospital": {{Name: "General Hospital", DistanceKM: 2.4}},
		"police":   {{Name: "Central Precinct", DistanceKM: 1.1}},
	}}
	engine := newTestEngine(&fakeStore{}, maps)

	report, err := engine.CheckLocation(context.Background(), SafetyQuery{
		Center: domain.Coordinate{Lat: 40.7, Lon: -74.0},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SafetySafe, report.OverallStatus)
	assert.Equal(t, domain.SafetySafe.Recommendation(), report.Recommendation)
	assert.Nil(t, report.NearestThreatKM)
	assert.Empty(t, report.Threats)
	require.Len(t, report.Hospitals, 1)
	require.Len(t, report.Police, 1)
}

func TestCheckLocation_NearbyThreatIsDanger(t *testing.T) {
	// Threat ~3 km away, inside the danger band.
	store := &fakeStore{events: []domain.Event{assessed("flood", 0, 0.027, 70)}}
	maps := &fakeMaps{places: map[string][]domain.Place{}}
	engine := newTestEngine(store, maps)

	report, err := engine.CheckLocation(context.Background(), SafetyQuery{
		Center: domain.Coordinate{Lat: 0, Lon: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SafetyDanger, report.OverallStatus)
	require.NotNil(t, report.NearestThreatKM)
	assert.InDelta(t, 3.0, *report.NearestThreatKM, 0.2)
	require.Len(t, report.Threats, 1)
}

func TestCheckLocation_MappingFailureFailsWhole(t *testing.T) {
	store := &fakeStore{events: []domain.Event{assessed("flood", 0, 0.027, 70)}}
	maps := &fakeMaps{placesErr: domain.ErrMapsUnavailable}
	engine := newTestEngine(store, maps)

	_, err := engine.CheckLocation(context.Background(), SafetyQuery{
		Center: domain.Coordinate{Lat: 0, Lon: 0},
	})
	assert.ErrorIs(t, err, domain.ErrMapsUnavailable)
}
