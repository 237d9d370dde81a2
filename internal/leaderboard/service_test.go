package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestGlobalRanking(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, COALESCE\(total_streets_explored,0\), COALESCE\(total_distance_meters,0\)`).
		WithArgs(25).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "streets", "distance"}).
			AddRow("user-1", "ada", 120, 95000.0).
			AddRow("user-2", "grace", 80, 60000.0))

	svc := NewService(mock)
	entries, err := svc.Global(context.Background(), 0)
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Rank != 1 || entries[0].Username != "ada" || entries[1].Rank != 2 {
		t.Fatalf("unexpected ranking: %+v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCityRanking(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	lastActivity := time.Now()
	mock.ExpectQuery(`SELECT u.id, u.username, cp.streets_explored, cp.total_distance_meters, cp.last_activity`).
		WithArgs("Paris", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "streets", "distance", "last_activity"}).
			AddRow("user-1", "ada", 40, 25000.0, lastActivity))

	svc := NewService(mock)
	entries, err := svc.City(context.Background(), "Paris", 10)
	if err != nil {
		t.Fatalf("city: %v", err)
	}
	if len(entries) != 1 || entries[0].Rank != 1 || entries[0].StreetsExplored != 40 {
		t.Fatalf("unexpected ranking: %+v", entries)
	}
}

func TestUserRank(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) \+ 1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"rank"}).AddRow(7))

	svc := NewService(mock)
	rank, err := svc.Rank(context.Background(), "user-1")
	if err != nil || rank != 7 {
		t.Fatalf("unexpected rank: %d %v", rank, err)
	}
}

func TestGlobalQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, COALESCE\(total_streets_explored,0\), COALESCE\(total_distance_meters,0\)`).
		WithArgs(25).
		WillReturnError(errRanking)

	svc := NewService(mock)
	if _, err := svc.Global(context.Background(), 0); err == nil {
		t.Fatalf("expected error")
	}
}

var errRanking = errors.New("ranking error")
