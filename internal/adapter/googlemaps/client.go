// Package googlemaps implements domain.MapProvider using the Google
// Places Nearby Search and Google Directions APIs.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
)

const maxPlacesRadiusMeters = 50000 // Places API hard cap

// categoryTypes maps service categories to Google Places types. Shelters
// have no dedicated Places type; community centers are the closest
// approximation.
var categoryTypes = map[string]string{
	"hospital":     "hospital",
	"police":       "police",
	"fire_station": "fire_station",
	"shelter":      "community_center",
	"pharmacy":     "pharmacy",
	"gas_station":  "gas_station",
}

// Client calls the Google Maps web service APIs.
type Client struct {
	apiKey        string
	httpClient    *http.Client
	placesURL     string
	directionsURL string
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewClient creates a Google Maps client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		placesURL:     "https://maps.googleapis.com/maps/api/place/nearbysearch/json",
		directionsURL: "https://maps.googleapis.com/maps/api/directions/json",
		metrics:       metrics,
		logger:        logger,
	}
}

// FindNearby returns places of a category around origin, nearest first.
func (c *Client) FindNearby(ctx context.Context, origin domain.Coordinate, category string, radiusKM float64, limit int) ([]domain.Place, error) {
	placeType, ok := categoryTypes[category]
	if !ok {
		placeType = category
	}

	radiusMeters := int(radiusKM * 1000)
	if radiusMeters > maxPlacesRadiusMeters {
		radiusMeters = maxPlacesRadiusMeters
	}

	params := url.Values{
		"location": {fmt.Sprintf("%f,%f", origin.Lat, origin.Lon)},
		"radius":   {strconv.Itoa(radiusMeters)},
		"type":     {placeType},
		"key":      {c.apiKey},
	}

	var resp placesResponse
	if err := c.doRequest(ctx, "places", c.placesURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("%w: places status %s: %s", domain.ErrMapsUnavailable, resp.Status, resp.ErrorMessage)
	}

	places := make([]domain.Place, 0, len(resp.Results))
	for _, p := range resp.Results {
		coord := domain.Coordinate{Lat: p.Geometry.Location.Lat, Lon: p.Geometry.Location.Lng}
		place := domain.Place{
			Name:        p.Name,
			Address:     p.Vicinity,
			Coordinates: coord,
			DistanceKM:  domain.HaversineKM(origin, coord),
			Rating:      p.Rating,
			RatingCount: p.UserRatingsTotal,
			PlaceID:     p.PlaceID,
		}
		if p.OpeningHours != nil {
			place.OpenNow = p.OpeningHours.OpenNow
		}
		places = append(places, place)
	}

	sort.Slice(places, func(i, j int) bool { return places[i].DistanceKM < places[j].DistanceKM })
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}

// ComputeRoutes returns candidate routes from origin to destination. The
// first candidate is the provider's default route.
func (c *Client) ComputeRoutes(ctx context.Context, origin, destination domain.Coordinate, mode string, alternatives bool) ([]domain.Route, error) {
	params := url.Values{
		"origin":       {fmt.Sprintf("%f,%f", origin.Lat, origin.Lon)},
		"destination":  {fmt.Sprintf("%f,%f", destination.Lat, destination.Lon)},
		"mode":         {mode},
		"alternatives": {strconv.FormatBool(alternatives)},
		"key":          {c.apiKey},
	}

	var resp directionsResponse
	if err := c.doRequest(ctx, "directions", c.directionsURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" {
		return nil, nil
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("%w: directions status %s: %s", domain.ErrMapsUnavailable, resp.Status, resp.ErrorMessage)
	}

	routes := make([]domain.Route, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		if len(r.Legs) == 0 {
			continue
		}
		leg := r.Legs[0] // single-leg routes only
		points, err := decodePolyline(r.OverviewPolyline.Points)
		if err != nil {
			return nil, fmt.Errorf("%w: decode route polyline: %v", domain.ErrMapsUnavailable, err)
		}
		routes = append(routes, domain.Route{
			Summary:         r.Summary,
			DistanceKM:      float64(leg.Distance.Value) / 1000,
			DurationMinutes: float64(leg.Duration.Value) / 60,
			StartAddress:    leg.StartAddress,
			EndAddress:      leg.EndAddress,
			Points:          points,
		})
	}
	return routes, nil
}

func (c *Client) doRequest(ctx context.Context, method, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.MapsAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %s request: %v", domain.ErrMapsUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s status %d: %s", domain.ErrMapsUnavailable, method, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrMapsUnavailable, method, err)
	}
	return nil
}

// Google Maps API response types.

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	Name             string  `json:"name"`
	Vicinity         string  `json:"vicinity"`
	PlaceID          string  `json:"place_id"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	OpeningHours *struct {
		OpenNow *bool `json:"open_now"`
	} `json:"opening_hours"`
}

type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Routes       []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []struct {
		Distance struct {
			Value int `json:"value"`
		} `json:"distance"`
		Duration struct {
			Value int `json:"value"`
		} `json:"duration"`
		StartAddress string `json:"start_address"`
		EndAddress   string `json:"end_address"`
	} `json:"legs"`
}
