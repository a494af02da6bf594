package domain

import "context"

// Place is a nearby resource (hospital, police station, shelter) returned
// by the mapping provider.
type Place struct {
	Name        string     `json:"name"`
	Address     string     `json:"address,omitempty"`
	Coordinates Coordinate `json:"coordinates"`
	DistanceKM  float64    `json:"distance_km"`
	Rating      float64    `json:"rating,omitempty"`
	RatingCount int        `json:"rating_count,omitempty"`
	PlaceID     string     `json:"place_id,omitempty"`
	OpenNow     *bool      `json:"is_open,omitempty"`
}

// Route is one candidate path geometry from the mapping provider, with
// the polyline already decoded into canonical coordinates.
type Route struct {
	Summary         string       `json:"summary"`
	DistanceKM      float64      `json:"distance_km"`
	DurationMinutes float64      `json:"duration_minutes"`
	StartAddress    string       `json:"start_address,omitempty"`
	EndAddress      string       `json:"end_address,omitempty"`
	Points          []Coordinate `json:"-"`
}

// MapProvider is the external mapping capability: nearby-place lookups
// and route geometry. Failures surface as ErrMapsUnavailable-wrapped
// errors so callers can return a clean "unavailable" result.
type MapProvider interface {
	// FindNearby returns places of a category around origin, nearest
	// first, capped at limit.
	FindNearby(ctx context.Context, origin Coordinate, category string, radiusKM float64, limit int) ([]Place, error)

	// ComputeRoutes returns one or more candidate routes from origin to
	// destination. The first candidate is the provider's default.
	ComputeRoutes(ctx context.Context, origin, destination Coordinate, mode string, alternatives bool) ([]Route, error)
}
