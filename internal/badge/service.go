// Package badge evaluates threshold rules over a user's aggregate
// exploration stats and records unlocks.
package badge

import (
	"context"
	"log"
	"time"

	"github.com/SkaSmat/city-explorer/internal/db"
	"github.com/SkaSmat/city-explorer/internal/trackstore"
)

// StatsSource supplies the aggregates the rules are checked against.
type StatsSource interface {
	UserStats(ctx context.Context, userID string) (trackstore.Stats, error)
}

type Service struct {
	db    db.Querier
	stats StatsSource
}

func NewService(db db.Querier, stats StatsSource) *Service {
	return &Service{db: db, stats: stats}
}

func (s *Service) ListBadges(ctx context.Context) ([]Badge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, icon, condition_type, condition_value
		FROM badges ORDER BY condition_type, condition_value
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.ConditionType, &b.ConditionValue); err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, nil
}

func (s *Service) UserBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.id, b.name, b.description, b.icon, b.condition_type, b.condition_value, ub.unlocked_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.unlocked_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []UserBadge
	for rows.Next() {
		var ub UserBadge
		if err := rows.Scan(&ub.ID, &ub.Name, &ub.Description, &ub.Icon, &ub.ConditionType, &ub.ConditionValue, &ub.UnlockedAt); err != nil {
			return nil, err
		}
		badges = append(badges, ub)
	}
	return badges, nil
}

// CheckAndUnlock evaluates every badge the user has not earned yet and
// records the ones whose condition the current stats satisfy. Called
// after each saved track. Idempotent: a badge unlocked by a concurrent
// call is simply not reported again.
func (s *Service) CheckAndUnlock(ctx context.Context, userID string) ([]Badge, error) {
	stats, err := s.stats.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	badges, err := s.ListBadges(ctx)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.unlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var newly []Badge
	for _, b := range badges {
		if _, ok := unlocked[b.ID]; ok {
			continue
		}
		if !conditionMet(b, stats) {
			continue
		}

		tag, err := s.db.Exec(ctx, `
			INSERT INTO user_badges (user_id, badge_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, badge_id) DO NOTHING
		`, userID, b.ID, time.Now())
		if err != nil {
			log.Printf("badge: unlock %s for %s: %v", b.Name, userID, err)
			continue
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		newly = append(newly, b)
	}
	return newly, nil
}

func (s *Service) unlockedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func conditionMet(b Badge, stats trackstore.Stats) bool {
	switch b.ConditionType {
	case ConditionDistance:
		return stats.TotalDistanceMeters >= float64(b.ConditionValue)
	case ConditionStreets:
		return stats.StreetsExplored >= b.ConditionValue
	case ConditionCities:
		return stats.Cities >= b.ConditionValue
	default:
		return false
	}
}
