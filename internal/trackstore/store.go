// Package trackstore persists finalized tracks and reconciles explored
// street ids against the per-user ledger. The tracker treats it as an
// atomic black box; historical deduplication happens here, not in the
// session.
package trackstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SkaSmat/city-explorer/internal/db"
	"github.com/SkaSmat/city-explorer/internal/tracker"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Store struct {
	db db.Querier
}

func New(db db.Querier) *Store {
	return &Store{db: db}
}

// SaveTrack writes the track row, inserts any streets this user has
// never explored before, and bumps the per-city and per-user counters.
// Returns the number of newly discovered streets.
func (s *Store) SaveTrack(ctx context.Context, rec tracker.TrackRecord) (int, error) {
	trackID := uuid.NewString()

	_, err := s.db.Exec(ctx, `
		INSERT INTO gps_tracks (id, user_id, city, route_geometry, distance_meters, duration_seconds, started_at, ended_at)
		VALUES ($1,$2,$3, ST_GeogFromText($4), $5, $6, $7, $8)
	`, trackID, rec.UserID, rec.City, lineStringWKT(rec), rec.DistanceMeters, rec.DurationSeconds, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return 0, fmt.Errorf("insert track: %w", err)
	}

	newStreets := 0
	if len(rec.ExploredStreetIDs) > 0 {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO explored_streets (user_id, osm_street_id, city, track_id)
			SELECT $1, unnest($2::bigint[]), $3, $4
			ON CONFLICT (user_id, osm_street_id) DO NOTHING
		`, rec.UserID, rec.ExploredStreetIDs, rec.City, trackID)
		if err != nil {
			return 0, fmt.Errorf("reconcile streets: %w", err)
		}
		newStreets = int(tag.RowsAffected())
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO city_progress (user_id, city, streets_explored, total_distance_meters, last_activity)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, city) DO UPDATE
		SET streets_explored = city_progress.streets_explored + EXCLUDED.streets_explored,
		    total_distance_meters = city_progress.total_distance_meters + EXCLUDED.total_distance_meters,
		    last_activity = EXCLUDED.last_activity
	`, rec.UserID, rec.City, newStreets, rec.DistanceMeters, rec.EndedAt)
	if err != nil {
		return 0, fmt.Errorf("update city progress: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users
		SET total_streets_explored = total_streets_explored + $2,
		    total_distance_meters = total_distance_meters + $3
		WHERE id = $1
	`, rec.UserID, newStreets, rec.DistanceMeters)
	if err != nil {
		return 0, fmt.Errorf("update user totals: %w", err)
	}

	return newStreets, nil
}

// CityProgress reads one per-city counter. A missing row reads as zero
// progress, not an error.
func (s *Store) CityProgress(ctx context.Context, userID, city string) (CityProgress, error) {
	row := s.db.QueryRow(ctx, `
		SELECT city, streets_explored, total_distance_meters, last_activity
		FROM city_progress WHERE user_id=$1 AND city=$2
	`, userID, city)

	var progress CityProgress
	if err := row.Scan(&progress.City, &progress.StreetsExplored, &progress.TotalDistanceMeters, &progress.LastActivity); err != nil {
		if isNoRows(err) {
			return CityProgress{City: city}, nil
		}
		return CityProgress{}, err
	}
	return progress, nil
}

// ExploredCities lists every city the user has progress in, most
// recently active first.
func (s *Store) ExploredCities(ctx context.Context, userID string) ([]CityProgress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT city, streets_explored, total_distance_meters, last_activity
		FROM city_progress WHERE user_id=$1
		ORDER BY last_activity DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []CityProgress
	for rows.Next() {
		var progress CityProgress
		if err := rows.Scan(&progress.City, &progress.StreetsExplored, &progress.TotalDistanceMeters, &progress.LastActivity); err != nil {
			return nil, err
		}
		cities = append(cities, progress)
	}
	return cities, nil
}

// UserStats returns the aggregates badge rules are checked against.
func (s *Store) UserStats(ctx context.Context, userID string) (Stats, error) {
	var stats Stats
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(total_streets_explored,0), COALESCE(total_distance_meters,0)
		FROM users WHERE id=$1
	`, userID)
	if err := row.Scan(&stats.StreetsExplored, &stats.TotalDistanceMeters); err != nil {
		return Stats{}, err
	}

	row = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM city_progress WHERE user_id=$1`, userID)
	if err := row.Scan(&stats.Cities); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// lineStringWKT renders the simplified track as an EWKT linestring for
// PostGIS. Tracks with fewer than two points store an empty geometry.
func lineStringWKT(rec tracker.TrackRecord) string {
	if len(rec.Points) < 2 {
		return "SRID=4326;LINESTRING EMPTY"
	}
	coords := make([]string, 0, len(rec.Points))
	for _, p := range rec.Points {
		coords = append(coords, fmt.Sprintf("%f %f", p.Lng, p.Lat))
	}
	return "SRID=4326;LINESTRING(" + strings.Join(coords, ", ") + ")"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
