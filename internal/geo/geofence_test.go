package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

func TestHaversineDistance(t *testing.T) {
	// Riyadh -> Jeddah, roughly 849 km.
	got := HaversineDistance(24.7136, 46.6753, 21.4858, 39.1925)
	assert.InEpsilon(t, 849000, got, 0.01, "distance should be within 1%% of 849 km")

	// Zero distance for identical points.
	assert.Equal(t, 0.0, HaversineDistance(24.7136, 46.6753, 24.7136, 46.6753))
}

func TestHaversineDistanceShortRange(t *testing.T) {
	// One degree of latitude is ~111.19 km, so 0.001 degrees is ~111.19 m.
	got := HaversineDistance(24.7136, 46.6753, 24.7146, 46.6753)
	assert.InEpsilon(t, 111.19, got, 0.01)
}

func TestEvaluateInsideAndOutside(t *testing.T) {
	branchLat := float64Ptr(24.7136)
	branchLng := float64Ptr(46.6753)

	inside := Evaluate(24.7140, 46.6753, branchLat, branchLng, 150)
	require.True(t, inside.Known)
	assert.True(t, inside.Inside)
	assert.Less(t, inside.DistanceMeters, 150.0)

	outside := Evaluate(24.7160, 46.6753, branchLat, branchLng, 150)
	require.True(t, outside.Known)
	assert.False(t, outside.Inside)
	assert.Greater(t, outside.DistanceMeters, 150.0)
}

func TestEvaluateBoundaryIsInclusive(t *testing.T) {
	branchLat := float64Ptr(24.7136)
	branchLng := float64Ptr(46.6753)

	sampleLat := 24.7146
	distance := HaversineDistance(sampleLat, 46.6753, *branchLat, *branchLng)

	// Radius set to the exact measured distance: still inside.
	eval := Evaluate(sampleLat, 46.6753, branchLat, branchLng, distance)
	require.True(t, eval.Known)
	assert.True(t, eval.Inside, "sample exactly at the radius must count as inside")

	// One millimeter under the distance: outside.
	eval = Evaluate(sampleLat, 46.6753, branchLat, branchLng, distance-0.001)
	assert.False(t, eval.Inside)
}

func TestEvaluateMissingBranchCoordinates(t *testing.T) {
	eval := Evaluate(24.7136, 46.6753, nil, nil, 150)
	assert.False(t, eval.Known, "missing coordinates must propagate as unknown")
	assert.False(t, eval.Inside, "unknown distance must never read as inside")

	eval = Evaluate(24.7136, 46.6753, float64Ptr(24.7136), nil, 150)
	assert.False(t, eval.Known)
}

func TestEvaluateAntipodalSanity(t *testing.T) {
	// No NaN or infinity even for extreme separations.
	d := HaversineDistance(90, 0, -90, 0)
	assert.False(t, math.IsNaN(d))
	assert.InEpsilon(t, math.Pi*earthRadiusMeters, d, 0.001)
}
