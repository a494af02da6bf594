package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/safety"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	defaultHighRiskScore = 50
)

// coordinatePair is a raw two-element pair whose ordering may follow
// either the (lat, lon) or (lon, lat) convention. It is resolved into
// the canonical representation before any use.
type coordinatePair []float64

func (p coordinatePair) toCoordinate() (domain.Coordinate, error) {
	if len(p) != 2 {
		return domain.Coordinate{}, fmt.Errorf("%w: expected a [a, b] pair, got %d values",
			domain.ErrInvalidCoordinate, len(p))
	}
	return domain.NormalizeCoordinatePair(p[0], p[1])
}

type ingestEventRequest struct {
	EventID     string         `json:"event_id" validate:"required"`
	Type        string         `json:"type" validate:"required"`
	Source      string         `json:"source" validate:"required"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Coordinates coordinatePair `json:"coordinates" validate:"omitempty,len=2"`
}

// handleIngestEvent accepts a hazard occurrence from a collector and
// stores it as a NEW record. The pipeline picks it up on its next poll;
// the push notification only shortens that wait.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	event := domain.Event{
		ID:          uuid.NewString(),
		EventID:     req.EventID,
		Type:        req.Type,
		Source:      req.Source,
		Location:    req.Location,
		Description: req.Description,
		OccurredAt:  req.Timestamp,
		Status:      domain.StatusNew,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if len(req.Coordinates) > 0 {
		coordinate, err := req.Coordinates.toCoordinate()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		event.Coordinates = &coordinate
	}

	if err := s.store.Create(r.Context(), event); err != nil {
		s.logger.Error("event create failed", "event_id", req.EventID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("event could not be stored"))
		return
	}
	s.notify(r.Context(), event)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     event.ID,
		"status": string(event.Status),
	})
}

// notify emits the wake-up message. Best-effort: the poller will reach
// the event regardless.
func (s *Server) notify(ctx context.Context, event domain.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishNotification(ctx, event); err != nil {
		s.logger.Warn("notification publish failed", "id", event.ID, "error", err)
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.store.List(r.Context(), status, limit)
	if err != nil {
		s.logger.Error("event list failed", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("events could not be listed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.logger.Error("event get failed", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("event could not be read"))
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleHighRiskEvents returns assessed events at or above a score
// threshold, highest score first.
func (s *Server) handleHighRiskEvents(w http.ResponseWriter, r *http.Request) {
	minScore := defaultHighRiskScore
	if raw := r.URL.Query().Get("min_risk_score"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 100 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("min_risk_score %q outside [0,100]", raw))
			return
		}
		minScore = parsed
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.store.List(r.Context(), domain.StatusAssessed, maxListLimit)
	if err != nil {
		s.logger.Error("high-risk list failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("events could not be listed"))
		return
	}

	highRisk := make([]domain.Event, 0, len(events))
	for _, event := range events {
		if event.RiskScore() >= minScore {
			highRisk = append(highRisk, event)
		}
	}
	sort.Slice(highRisk, func(i, j int) bool {
		return highRisk[i].RiskScore() > highRisk[j].RiskScore()
	})
	if len(highRisk) > limit {
		highRisk = highRisk[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events":         highRisk,
		"count":          len(highRisk),
		"min_risk_score": minScore,
	})
}

// threatsNearbyRequest keeps min_risk_score a pointer so an omitted
// field is distinguishable from an explicit 0: omitted defers to the
// engine's configured default.
type threatsNearbyRequest struct {
	Coordinates  coordinatePair `json:"coordinates" validate:"required,len=2"`
	RadiusKM     float64        `json:"radius_km" validate:"omitempty,gt=0,lte=500"`
	MinRiskScore *int           `json:"min_risk_score" validate:"omitempty,min=0,max=100"`
}

func (s *Server) handleThreatsNearby(w http.ResponseWriter, r *http.Request) {
	var req threatsNearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	center, err := req.Coordinates.toCoordinate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	minScore := -1 // engine substitutes the configured default
	if req.MinRiskScore != nil {
		minScore = *req.MinRiskScore
	}

	report, err := s.engine.NearbyThreats(r.Context(), safety.ThreatQuery{
		Center:       center,
		RadiusKM:     req.RadiusKM,
		MinRiskScore: minScore,
	})
	if err != nil {
		s.writeQueryError(w, "threats nearby", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type routesAnalyzeRequest struct {
	Origin       coordinatePair `json:"origin" validate:"required,len=2"`
	Destination  coordinatePair `json:"destination" validate:"required,len=2"`
	Mode         string         `json:"mode" validate:"omitempty,oneof=driving walking bicycling transit"`
	AvoidThreats bool           `json:"avoid_threats"`
	Alternatives bool           `json:"alternatives"`
}

func (s *Server) handleRoutesAnalyze(w http.ResponseWriter, r *http.Request) {
	var req routesAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	origin, err := req.Origin.toCoordinate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	destination, err := req.Destination.toCoordinate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.engine.AnalyzeRoutes(r.Context(), safety.RouteQuery{
		Origin:       origin,
		Destination:  destination,
		Mode:         req.Mode,
		AvoidThreats: req.AvoidThreats,
		Alternatives: req.Alternatives,
	})
	if err != nil {
		s.writeQueryError(w, "route analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type safetyCheckRequest struct {
	Coordinates coordinatePair `json:"coordinates" validate:"required,len=2"`
	RadiusKM    float64        `json:"radius_km" validate:"omitempty,gt=0,lte=500"`
}

func (s *Server) handleSafetyCheck(w http.ResponseWriter, r *http.Request) {
	var req safetyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	center, err := req.Coordinates.toCoordinate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.engine.CheckLocation(r.Context(), safety.SafetyQuery{
		Center:   center,
		RadiusKM: req.RadiusKM,
	})
	if err != nil {
		s.writeQueryError(w, "safety check", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeQueryError maps safety-engine failures onto API status codes.
// A mapping-provider outage is a clean 503, never a partial verdict.
func (s *Server) writeQueryError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrMapsUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("safety query failed", "operation", operation, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("query could not be served"))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit %q must be a positive integer", raw)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
