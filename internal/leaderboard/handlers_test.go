package leaderboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func newRankingApp(mock pgxmock.PgxPoolIface) *fiber.App {
	app := fiber.New()
	authStub := func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	}
	RegisterRoutes(app.Group("/leaderboard"), NewService(mock), authStub)
	return app
}

func TestGlobalHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, COALESCE\(total_streets_explored,0\), COALESCE\(total_distance_meters,0\)`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "streets", "distance"}).
			AddRow("user-1", "ada", 120, 95000.0))

	app := newRankingApp(mock)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/leaderboard/global?limit=5", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("global status: %v", err)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Rank != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestGlobalHandlerEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, COALESCE\(total_streets_explored,0\), COALESCE\(total_distance_meters,0\)`).
		WithArgs(25).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "streets", "distance"}))

	app := newRankingApp(mock)
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/leaderboard/global", nil))

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty array")
	}
}

func TestCityHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT u.id, u.username, cp.streets_explored, cp.total_distance_meters, cp.last_activity`).
		WithArgs("Paris", 25).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "streets", "distance", "last_activity"}))

	app := newRankingApp(mock)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/leaderboard/city/Paris", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("city status: %v", err)
	}
}

func TestMeHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) \+ 1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"rank"}).AddRow(3))

	app := newRankingApp(mock)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/leaderboard/me", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %v", err)
	}

	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["rank"] != 3 {
		t.Fatalf("unexpected rank: %v", body)
	}
}
