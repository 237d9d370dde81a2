package progress

import "time"

// CityProgress is the dashboard view of one city: the persisted
// counters combined with the coverage estimate for the whole city.
type CityProgress struct {
	City                string    `json:"city"`
	StreetsExplored     int       `json:"streets_explored"`
	TotalStreets        int       `json:"total_streets"`
	PercentExplored     int       `json:"percent_explored"`
	TotalDistanceMeters float64   `json:"total_distance_meters"`
	LastActivity        time.Time `json:"last_activity"`
}

// countEnvelope is the durable-cache record for a city street census.
// The bounding box rides along so a warm cache never re-geocodes.
type countEnvelope struct {
	Count    int     `json:"count"`
	MinLat   float64 `json:"min_lat"`
	MinLng   float64 `json:"min_lng"`
	MaxLat   float64 `json:"max_lat"`
	MaxLng   float64 `json:"max_lng"`
	CachedAt int64   `json:"cached_at"`
}
