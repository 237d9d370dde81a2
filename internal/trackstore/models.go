package trackstore

import "time"

// CityProgress is the per-(user, city) exploration counter kept in sync
// by SaveTrack and read by the progress dashboard.
type CityProgress struct {
	City                string    `json:"city"`
	StreetsExplored     int       `json:"streets_explored"`
	TotalDistanceMeters float64   `json:"total_distance_meters"`
	LastActivity        time.Time `json:"last_activity"`
}

// Stats are the per-user aggregates badge rules evaluate against.
type Stats struct {
	StreetsExplored     int     `json:"streets_explored"`
	TotalDistanceMeters float64 `json:"total_distance_meters"`
	Cities              int     `json:"cities"`
}
