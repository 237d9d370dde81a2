// Package leaderboard ranks explorers by streets discovered, globally
// and per city.
package leaderboard

import (
	"context"

	"github.com/SkaSmat/city-explorer/internal/db"
)

const defaultLimit = 25

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Global(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, username, COALESCE(total_streets_explored,0), COALESCE(total_distance_meters,0)
		FROM users
		ORDER BY total_streets_explored DESC, total_distance_meters DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Username, &e.StreetsExplored, &e.TotalDistanceMeters); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Service) City(ctx context.Context, city string, limit int) ([]CityEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, cp.streets_explored, cp.total_distance_meters, cp.last_activity
		FROM city_progress cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.city = $1
		ORDER BY cp.streets_explored DESC, cp.total_distance_meters DESC
		LIMIT $2
	`, city, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CityEntry
	for rows.Next() {
		var e CityEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.StreetsExplored, &e.TotalDistanceMeters, &e.LastActivity); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, nil
}

// Rank is the user's 1-based global position, counting everyone with
// strictly more explored streets ahead of them.
func (s *Service) Rank(ctx context.Context, userID string) (int, error) {
	var rank int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) + 1
		FROM users
		WHERE total_streets_explored > (
			SELECT COALESCE(total_streets_explored,0) FROM users WHERE id = $1
		)
	`, userID).Scan(&rank)
	if err != nil {
		return 0, err
	}
	return rank, nil
}
