// Package geomath is the leaf geometry package: great-circle distance,
// initial bearing, and the speed implied by consecutive fixes.
package geomath

import (
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrNoBearing is returned when a bearing is requested between
// coincident points; the bearing there is undefined.
var ErrNoBearing = errors.New("bearing undefined for coincident points")

// speedEpsilon floors the time delta in ImpliedSpeedMPS.
// Two fixes can share a timestamp (1-second granularity clients);
// that must not divide by zero.
const speedEpsilon = 1e-3 // seconds

// DistanceMeters returns the haversine great-circle distance between
// two points. Symmetric; zero for equal points.
func DistanceMeters(a, b orb.Point) float64 {
	if a.Equal(b) {
		return 0
	}
	return geo.DistanceHaversine(a, b)
}

// BearingDegrees returns the initial bearing from a to b,
// normalized to [0, 360).
func BearingDegrees(a, b orb.Point) (float64, error) {
	if a.Equal(b) {
		return math.NaN(), ErrNoBearing
	}
	// orb reports bearing in (-180, 180].
	return math.Mod(geo.Bearing(a, b)+360, 360), nil
}

// ImpliedSpeedMPS returns the speed a device must have traveled to get
// from a at ta to b at tb. The time delta is floored at an epsilon, and
// its absolute value is used so an out-of-order pair still implies a
// positive speed rather than a negative one.
func ImpliedSpeedMPS(a, b orb.Point, ta, tb time.Time) float64 {
	dt := math.Abs(tb.Sub(ta).Seconds())
	if dt < speedEpsilon {
		dt = speedEpsilon
	}
	return DistanceMeters(a, b) / dt
}
