// Package matcher decides which streets a GPS trace has touched.
package matcher

import (
	"math"

	"github.com/SkaSmat/city-explorer/internal/geo"
	"github.com/SkaSmat/city-explorer/internal/overpass"
)

// DefaultThresholdM is the proximity tolerance between a fix and a
// street polyline. GPS error in urban canyons makes anything tighter
// unreliable.
const DefaultThresholdM = 30

type Matcher struct {
	ThresholdM float64
}

func New() Matcher {
	return Matcher{ThresholdM: DefaultThresholdM}
}

// FindIntersectingStreets returns the ids of every street with at least
// one segment within the threshold of at least one point. Runs over the
// whole accumulated buffer each time, so it is idempotent and tolerates
// duplicate or out-of-order fixes.
func (m Matcher) FindIntersectingStreets(points []geo.Point, streets []overpass.Street) map[int64]struct{} {
	explored := map[int64]struct{}{}

	for _, point := range points {
		for _, street := range streets {
			if _, ok := explored[street.ID]; ok {
				continue
			}
			if m.pointNearStreet(point, street) {
				explored[street.ID] = struct{}{}
			}
		}
	}
	return explored
}

func (m Matcher) pointNearStreet(point geo.Point, street overpass.Street) bool {
	minDistance := math.Inf(1)
	for i := 0; i < len(street.Coords)-1; i++ {
		d := geo.DistanceToSegment(point.Lat, point.Lng, street.Coords[i], street.Coords[i+1])
		if d < minDistance {
			minDistance = d
		}
	}
	return minDistance <= m.ThresholdM
}
