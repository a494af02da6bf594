package domain

import "math"

// earthRadiusKM is the mean Earth radius used for great-circle distances.
const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKM(p1, p2 Coordinate) float64 {
	lat1 := radians(p1.Lat)
	lat2 := radians(p2.Lat)
	dLat := radians(p2.Lat - p1.Lat)
	dLon := radians(p2.Lon - p1.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Floating-point rounding can push a hair outside [0, 1] for
	// antipodal or identical points.
	a = math.Max(0, math.Min(1, a))

	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// SamplePoints returns every strideth point of a path, always including
// the first and last point. It bounds the cost of route scoring on long
// polylines. A stride below 1 is treated as 1.
func SamplePoints(points []Coordinate, stride int) []Coordinate {
	if stride < 1 {
		stride = 1
	}
	if len(points) <= 2 || stride == 1 {
		return points
	}
	sampled := make([]Coordinate, 0, len(points)/stride+2)
	for i := 0; i < len(points); i += stride {
		sampled = append(sampled, points[i])
	}
	if last := points[len(points)-1]; sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}
	return sampled
}

// MinDistanceKM returns the smallest Haversine distance from any of the
// given points to the target, or +Inf for an empty slice.
func MinDistanceKM(points []Coordinate, target Coordinate) float64 {
	min := math.Inf(1)
	for _, p := range points {
		if d := HaversineKM(p, target); d < min {
			min = d
		}
	}
	return min
}

// SafetyLevel is the four-tier classification of distance to the nearest
// threat.
type SafetyLevel string

const (
	SafetySafe     SafetyLevel = "safe"
	SafetyModerate SafetyLevel = "moderate"
	SafetyCaution  SafetyLevel = "caution"
	SafetyDanger   SafetyLevel = "danger"
)

// Tier thresholds in kilometers.
const (
	safeBeyondKM     = 50.0
	moderateBeyondKM = 20.0
	cautionBeyondKM  = 5.0
)

// ClassifySafety maps the distance to the nearest threat onto the safety
// scale. An infinite distance (no threats at all) is safe.
func ClassifySafety(nearestThreatKM float64) SafetyLevel {
	switch {
	case nearestThreatKM > safeBeyondKM:
		return SafetySafe
	case nearestThreatKM > moderateBeyondKM:
		return SafetyModerate
	case nearestThreatKM > cautionBeyondKM:
		return SafetyCaution
	default:
		return SafetyDanger
	}
}

// Recommendation returns the user-facing guidance string for a tier.
func (l SafetyLevel) Recommendation() string {
	switch l {
	case SafetySafe:
		return "No immediate threats detected in your area."
	case SafetyModerate:
		return "Threats detected at a distance. Stay alert and monitor the situation."
	case SafetyCaution:
		return "Threats within close range. Prepare an evacuation plan and stay informed."
	default:
		return "Immediate threats detected nearby. Consider evacuation if safe to do so."
	}
}
