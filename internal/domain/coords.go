package domain

import "fmt"

// Coordinate is a WGS-84 latitude/longitude pair. It is a named struct on
// purpose: bare two-element arrays are how upstream ordering bugs slip in.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates ranges and returns a canonical coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %v outside [-90,90]", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %v outside [-180,180]", ErrInvalidCoordinate, lon)
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// NormalizeCoordinatePair resolves the (lat, lon) vs (lon, lat) ordering
// ambiguity of raw feed pairs. If the pair is only valid read as
// (lat, lon) it is taken as such; if it is only valid read as (lon, lat)
// it is swapped; if neither reading is valid it is rejected.
//
// Known limitation: a pair whose values both fit in [-90, 90] is valid
// under either reading and cannot be disambiguated by range alone. Such
// pairs are taken as (lat, lon). Feeds known to emit (lon, lat) should be
// swapped by the collector before ingestion rather than relying on this
// heuristic.
func NormalizeCoordinatePair(a, b float64) (Coordinate, error) {
	if c, err := NewCoordinate(a, b); err == nil {
		return c, nil
	}
	if c, err := NewCoordinate(b, a); err == nil {
		return c, nil
	}
	return Coordinate{}, fmt.Errorf("%w: pair (%v, %v) valid under no ordering", ErrInvalidCoordinate, a, b)
}
