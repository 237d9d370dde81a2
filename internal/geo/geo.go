// Package geo holds the pure geometry used by street matching and track
// processing. Everything here is stateless; distances are in meters.
package geo

import "math"

const earthRadiusM = 6371000

// Point is a single GPS fix. Timestamp is unix milliseconds.
type Point struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
	Altitude  float64 `json:"altitude,omitempty"`
}

// Coord is one vertex of a street polyline, in (lng, lat) order as
// delivered by Overpass.
type Coord struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// BBox is an axis-aligned lat/lng rectangle.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BBoxAround computes a bounding box centered on (lat, lng) using the
// flat-earth approximation: 1 degree of latitude is ~111 km, longitude
// scaled by cos(lat).
func BBoxAround(lat, lng, radiusKm float64) BBox {
	latDelta := radiusKm / 111
	lngDelta := radiusKm / (111 * math.Cos(lat*math.Pi/180))
	return BBox{
		MinLat: lat - latDelta,
		MinLng: lng - lngDelta,
		MaxLat: lat + latDelta,
		MaxLng: lng + lngDelta,
	}
}

// Haversine returns the great-circle distance in meters between two
// lat/lng pairs.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// DistanceToSegment returns the distance in meters from a point to the
// segment a-b. The projection treats lat/lng as locally Euclidean and
// clamps to the segment; the final measurement is a true haversine
// distance. Good enough at street scale.
func DistanceToSegment(pLat, pLng float64, a, b Coord) float64 {
	dLat := pLat - a.Lat
	dLng := pLng - a.Lng
	segLat := b.Lat - a.Lat
	segLng := b.Lng - a.Lng

	dot := dLat*segLat + dLng*segLng
	lenSq := segLat*segLat + segLng*segLng

	param := -1.0
	if lenSq != 0 {
		param = dot / lenSq
	}

	var projLat, projLng float64
	switch {
	case param < 0:
		projLat, projLng = a.Lat, a.Lng
	case param > 1:
		projLat, projLng = b.Lat, b.Lng
	default:
		projLat = a.Lat + param*segLat
		projLng = a.Lng + param*segLng
	}

	return Haversine(pLat, pLng, projLat, projLng)
}

// PathLength sums consecutive haversine distances over a track.
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		total += Haversine(prev.Lat, prev.Lng, curr.Lat, curr.Lng)
	}
	return total
}

// Simplify reduces a track for storage: keep the first point, then keep
// each point only when it moved more than toleranceM from the last kept
// one, and always keep the last point. O(n), not Douglas-Peucker.
func Simplify(points []Point, toleranceM float64) []Point {
	if len(points) <= 2 {
		return points
	}

	simplified := []Point{points[0]}
	for i := 1; i < len(points)-1; i++ {
		prev := simplified[len(simplified)-1]
		curr := points[i]
		if Haversine(prev.Lat, prev.Lng, curr.Lat, curr.Lng) > toleranceM {
			simplified = append(simplified, curr)
		}
	}
	return append(simplified, points[len(points)-1])
}

func toRad(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
