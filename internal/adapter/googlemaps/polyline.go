package googlemaps

import (
	"errors"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

var errTruncatedPolyline = errors.New("truncated polyline")

// decodePolyline decodes a Google encoded polyline into coordinates.
// The format stores signed lat/lon deltas as base64-ish varints with a
// 1e-5 degree resolution.
func decodePolyline(encoded string) ([]domain.Coordinate, error) {
	var points []domain.Coordinate
	var lat, lon int64

	i := 0
	for i < len(encoded) {
		dLat, n, err := decodeVarint(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		lat += dLat

		dLon, n, err := decodeVarint(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		lon += dLon

		points = append(points, domain.Coordinate{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}
	return points, nil
}

// decodeVarint reads one zigzag-encoded value and returns it with the
// number of bytes consumed.
func decodeVarint(s string) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i + 1, nil
			}
			return result >> 1, i + 1, nil
		}
	}
	return 0, 0, errTruncatedPolyline
}
