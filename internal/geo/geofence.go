package geo

import "math"

const earthRadiusMeters = 6371000

// HaversineDistance returns the great-circle distance between two
// coordinates in meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)

	lat1Rad := lat1 * (math.Pi / 180.0)
	lat2Rad := lat2 * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Evaluation is the outcome of a geofence check. Known is false when the
// branch has no coordinates; an unknown distance must never be read as
// "inside".
type Evaluation struct {
	Known          bool
	DistanceMeters float64
	Inside         bool
}

// Evaluate checks a sample position against a circular geofence. The
// boundary is inclusive: a sample exactly at the radius is inside.
// branchLat/branchLng may be nil when the branch has no coordinates yet.
func Evaluate(sampleLat, sampleLng float64, branchLat, branchLng *float64, radiusMeters float64) Evaluation {
	if branchLat == nil || branchLng == nil {
		return Evaluation{}
	}

	distance := HaversineDistance(sampleLat, sampleLng, *branchLat, *branchLng)
	return Evaluation{
		Known:          true,
		DistanceMeters: distance,
		Inside:         distance <= radiusMeters,
	}
}
