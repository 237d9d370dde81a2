package leaderboard

import "time"

// Entry is one ranked row. Rank is 1-based and assigned in query
// order, so ties resolve by distance covered.
type Entry struct {
	Rank                int     `json:"rank"`
	UserID              string  `json:"user_id"`
	Username            string  `json:"username"`
	StreetsExplored     int     `json:"streets_explored"`
	TotalDistanceMeters float64 `json:"total_distance_meters"`
}

// CityEntry carries the city activity timestamp on top of the rank.
type CityEntry struct {
	Entry
	LastActivity time.Time `json:"last_activity"`
}
