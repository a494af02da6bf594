// Package safety answers proximity, route, and composite safety queries
// against the assessed threat picture. Only ASSESSED events count as
// threats; NEW and ERROR records are invisible here.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
)

// threatListLimit bounds how many assessed events one query considers.
const threatListLimit = 1000

const (
	opThreatsNearby = "threats_nearby"
	opRoutesAnalyze = "routes_analyze"
	opSafetyCheck   = "safety_check"

	outcomeOK    = "ok"
	outcomeError = "error"
)

const (
	statusSafe            = "safe"
	statusThreatsDetected = "threats_detected"
)

// Config carries the tunable thresholds. Injected at construction; the
// engine holds no ambient state.
type Config struct {
	ThreatRadiusKM    float64 // default proximity radius
	MinRiskScore      int     // default score threshold for a threat
	CheckRadiusKM     float64 // radius for the composite check
	RouteSampleStride int     // every Nth polyline point is scored
	ResourceLimit     int     // hospitals/police returned per category
}

// Engine computes safety verdicts from the event store and the mapping
// provider.
type Engine struct {
	store   domain.EventStore
	maps    domain.MapProvider
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine creates a safety engine. The map provider may be nil, in
// which case route and composite queries report the provider unavailable.
func NewEngine(store domain.EventStore, maps domain.MapProvider, cfg Config,
	logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.ResourceLimit <= 0 {
		cfg.ResourceLimit = 3
	}
	return &Engine{store: store, maps: maps, cfg: cfg, logger: logger, metrics: metrics}
}

// ThreatQuery asks which assessed events threaten a reference point.
// Zero RadiusKM and negative MinRiskScore fall back to configured defaults.
type ThreatQuery struct {
	Center       domain.Coordinate
	RadiusKM     float64
	MinRiskScore int
}

// Threat is one assessed event within range of the reference point.
type Threat struct {
	EventRef    string            `json:"id"`
	EventID     string            `json:"event_id"`
	Type        string            `json:"type"`
	Location    string            `json:"location,omitempty"`
	Coordinates domain.Coordinate `json:"coordinates"`
	DistanceKM  float64           `json:"distance_km"`
	Severity    domain.Severity   `json:"severity"`
	RiskScore   int               `json:"risk_score"`
}

// ThreatReport is an ordered proximity verdict. An empty Threats list is
// a valid result, not an error.
type ThreatReport struct {
	Status   string   `json:"status"`
	RadiusKM float64  `json:"radius_km"`
	Threats  []Threat `json:"threats"`
}

// NearbyThreats runs the proximity query: assessed events within the
// radius and at or above the score threshold, nearest first.
func (e *Engine) NearbyThreats(ctx context.Context, query ThreatQuery) (ThreatReport, error) {
	if err := validateCenter(query.Center); err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opThreatsNearby, outcomeError).Inc()
		return ThreatReport{}, err
	}
	if query.RadiusKM <= 0 {
		query.RadiusKM = e.cfg.ThreatRadiusKM
	}
	if query.MinRiskScore < 0 {
		query.MinRiskScore = e.cfg.MinRiskScore
	}

	threats, err := e.collectThreats(ctx, query)
	if err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opThreatsNearby, outcomeError).Inc()
		return ThreatReport{}, err
	}

	e.metrics.SafetyQueries.WithLabelValues(opThreatsNearby, outcomeOK).Inc()
	return ThreatReport{
		Status:   threatStatus(threats),
		RadiusKM: query.RadiusKM,
		Threats:  threats,
	}, nil
}

// collectThreats lists assessed events and filters by score and distance,
// sorted ascending by distance.
func (e *Engine) collectThreats(ctx context.Context, query ThreatQuery) ([]Threat, error) {
	events, err := e.store.List(ctx, domain.StatusAssessed, threatListLimit)
	if err != nil {
		return nil, fmt.Errorf("list assessed events: %w", err)
	}

	threats := make([]Threat, 0, len(events))
	for _, event := range events {
		if event.Risk == nil || event.Coordinates == nil {
			continue
		}
		if event.Risk.RiskScore < query.MinRiskScore {
			continue
		}
		distance := domain.HaversineKM(query.Center, *event.Coordinates)
		if distance > query.RadiusKM {
			continue
		}
		threats = append(threats, Threat{
			EventRef:    event.ID,
			EventID:     event.EventID,
			Type:        event.Type,
			Location:    event.Location,
			Coordinates: *event.Coordinates,
			DistanceKM:  distance,
			Severity:    event.Risk.Severity,
			RiskScore:   event.Risk.RiskScore,
		})
	}
	sort.Slice(threats, func(i, j int) bool {
		return threats[i].DistanceKM < threats[j].DistanceKM
	})
	return threats, nil
}

// RouteQuery asks how safe the candidate routes between two points are.
type RouteQuery struct {
	Origin       domain.Coordinate
	Destination  domain.Coordinate
	Mode         string
	AvoidThreats bool
	Alternatives bool
}

// RouteCandidate is one scored route geometry. NearestThreatKM is nil
// when there was nothing to measure, either no known threats or no
// geometry to measure them against.
type RouteCandidate struct {
	Summary         string             `json:"summary"`
	DistanceKM      float64            `json:"distance_km"`
	DurationMinutes float64            `json:"duration_minutes"`
	SafetyLevel     domain.SafetyLevel `json:"safety_level"`
	NearestThreatKM *float64           `json:"nearest_threat_km,omitempty"`
	HasThreatData   bool               `json:"has_threat_data"`
}

// RouteReport carries every candidate's classification so a caller can
// present alternatives, plus the index of the recommended one.
type RouteReport struct {
	Routes           []RouteCandidate `json:"routes"`
	RecommendedIndex int              `json:"recommended_index"`
	ThreatCount      int              `json:"threat_count"`
}

// AnalyzeRoutes fetches candidate routes, scores each against the threat
// picture, and picks a recommendation. Threats are fetched once per
// query, never per candidate.
func (e *Engine) AnalyzeRoutes(ctx context.Context, query RouteQuery) (RouteReport, error) {
	if err := validateCenter(query.Origin); err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeError).Inc()
		return RouteReport{}, err
	}
	if err := validateCenter(query.Destination); err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeError).Inc()
		return RouteReport{}, err
	}
	if e.maps == nil {
		e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeError).Inc()
		return RouteReport{}, domain.ErrMapsUnavailable
	}

	routes, err := e.maps.ComputeRoutes(ctx, query.Origin, query.Destination, query.Mode, query.Alternatives)
	if err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeError).Inc()
		return RouteReport{}, err
	}
	if len(routes) == 0 {
		e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeOK).Inc()
		return RouteReport{Routes: []RouteCandidate{}, RecommendedIndex: -1}, nil
	}

	// Route scoring must see the whole assessed picture: a threat near
	// the far end of a long route can sit well outside any radius drawn
	// around the origin.
	threats, err := e.collectThreats(ctx, ThreatQuery{
		Center:       query.Origin,
		RadiusKM:     math.Inf(1),
		MinRiskScore: e.cfg.MinRiskScore,
	})
	if err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeError).Inc()
		return RouteReport{}, err
	}

	candidates := make([]RouteCandidate, len(routes))
	for i, route := range routes {
		candidates[i] = e.scoreRoute(route, threats)
	}

	report := RouteReport{
		Routes:           candidates,
		RecommendedIndex: recommendRoute(candidates, query.AvoidThreats),
		ThreatCount:      len(threats),
	}
	e.metrics.SafetyQueries.WithLabelValues(opRoutesAnalyze, outcomeOK).Inc()
	return report, nil
}

// scoreRoute classifies one candidate by the minimum distance from any
// sampled geometry point to any known threat.
func (e *Engine) scoreRoute(route domain.Route, threats []Threat) RouteCandidate {
	candidate := RouteCandidate{
		Summary:         route.Summary,
		DistanceKM:      route.DistanceKM,
		DurationMinutes: route.DurationMinutes,
		SafetyLevel:     domain.SafetySafe,
	}
	if len(threats) == 0 {
		return candidate
	}

	sampled := domain.SamplePoints(route.Points, e.cfg.RouteSampleStride)
	nearest := math.Inf(1)
	for _, threat := range threats {
		if d := domain.MinDistanceKM(sampled, threat.Coordinates); d < nearest {
			nearest = d
		}
	}
	if math.IsInf(nearest, 1) {
		// Provider returned no geometry; nothing to measure against.
		return candidate
	}
	candidate.NearestThreatKM = &nearest
	candidate.HasThreatData = true
	candidate.SafetyLevel = domain.ClassifySafety(nearest)
	return candidate
}

// tierRank orders safety levels best-first for recommendation tie-breaks.
func tierRank(level domain.SafetyLevel) int {
	switch level {
	case domain.SafetySafe:
		return 0
	case domain.SafetyModerate:
		return 1
	case domain.SafetyCaution:
		return 2
	default:
		return 3
	}
}

// recommendRoute picks the provider default unless avoidThreats is set,
// in which case the safest tier wins and ties fall to shortest duration.
func recommendRoute(candidates []RouteCandidate, avoidThreats bool) int {
	if len(candidates) == 0 {
		return -1
	}
	if !avoidThreats {
		return 0
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		ri, rb := tierRank(candidates[i].SafetyLevel), tierRank(candidates[best].SafetyLevel)
		if ri < rb || (ri == rb && candidates[i].DurationMinutes < candidates[best].DurationMinutes) {
			best = i
		}
	}
	return best
}

// SafetyQuery asks for the composite picture around a location.
type SafetyQuery struct {
	Center   domain.Coordinate
	RadiusKM float64
}

// SafetyReport is the composite verdict: threats, nearby emergency
// resources, and a four-tier overall status with guidance.
// NearestThreatKM is nil when no threat is in range.
type SafetyReport struct {
	OverallStatus   domain.SafetyLevel `json:"overall_status"`
	Recommendation  string             `json:"recommendation"`
	NearestThreatKM *float64           `json:"nearest_threat_km,omitempty"`
	Threats         []Threat           `json:"threats"`
	Hospitals       []domain.Place     `json:"hospitals"`
	Police          []domain.Place     `json:"police"`
}

// CheckLocation combines the proximity query with hospital and police
// lookups. A mapping failure fails the whole query; a partial verdict is
// never returned.
func (e *Engine) CheckLocation(ctx context.Context, query SafetyQuery) (SafetyReport, error) {
	if err := validateCenter(query.Center); err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opSafetyCheck, outcomeError).Inc()
		return SafetyReport{}, err
	}
	if query.RadiusKM <= 0 {
		query.RadiusKM = e.cfg.CheckRadiusKM
	}
	if e.maps == nil {
		e.metrics.SafetyQueries.WithLabelValues(opSafetyCheck, outcomeError).Inc()
		return SafetyReport{}, domain.ErrMapsUnavailable
	}

	threats, err := e.collectThreats(ctx, ThreatQuery{
		Center:       query.Center,
		RadiusKM:     query.RadiusKM,
		MinRiskScore: e.cfg.MinRiskScore,
	})
	if err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opSafetyCheck, outcomeError).Inc()
		return SafetyReport{}, err
	}

	hospitals, err := e.maps.FindNearby(ctx, query.Center, "hospital", query.RadiusKM, e.cfg.ResourceLimit)
	if err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opSafetyCheck, outcomeError).Inc()
		return SafetyReport{}, err
	}
	police, err := e.maps.FindNearby(ctx, query.Center, "police", query.RadiusKM, e.cfg.ResourceLimit)
	if err != nil {
		e.metrics.SafetyQueries.WithLabelValues(opSafetyCheck, outcomeError).Inc()
		return SafetyReport{}, err
	}

	report := SafetyReport{
		OverallStatus: domain.SafetySafe,
		Threats:       threats,
		Hospitals:     hospitals,
		Police:        police,
	}
	if len(threats) > 0 {
		nearest := threats[0].DistanceKM
		report.NearestThreatKM = &nearest
		report.OverallStatus = domain.ClassifySafety(nearest)
	}
	report.Recommendation = report.OverallStatus.Recommendation()

	e.metrics.SafetyQueries.WithLabelValues(opSafetyCheck, outcomeOK).Inc()
	e.logger.Debug("composite safety check served",
		"overall_status", report.OverallStatus,
		"threats", len(threats),
	)
	return report, nil
}

func threatStatus(threats []Threat) string {
	if len(threats) == 0 {
		return statusSafe
	}
	return statusThreatsDetected
}

// validateCenter range-checks a coordinate before any distance math.
func validateCenter(c domain.Coordinate) error {
	_, err := domain.NewCoordinate(c.Lat, c.Lon)
	return err
}
