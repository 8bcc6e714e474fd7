package matching

import "math"

// earthRadiusKm is the spherical-earth approximation radius.
const earthRadiusKm = 6371.0

// Match score weights. Kept as named constants so they can be
// recalibrated without touching the algorithm shape.
const (
	DistanceWeight = 0.7
	PriceWeight    = 0.3
)

// DistanceKm computes the great-circle distance between two points via
// the haversine formula. Callers validate lat/long ranges beforehand;
// malformed inputs propagate as NaN.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// MatchScore blends distance and total price into a single ranking
// value. Lower is better; this is a minimization score, not a
// probability.
func MatchScore(distanceKm, totalPrice float64) float64 {
	return DistanceWeight*distanceKm + PriceWeight*totalPrice
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
