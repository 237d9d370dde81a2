package server

import (
	"github.com/SkaSmat/city-explorer/internal/auth"
	"github.com/SkaSmat/city-explorer/internal/badge"
	"github.com/SkaSmat/city-explorer/internal/config"
	"github.com/SkaSmat/city-explorer/internal/kvcache"
	"github.com/SkaSmat/city-explorer/internal/leaderboard"
	"github.com/SkaSmat/city-explorer/internal/overpass"
	"github.com/SkaSmat/city-explorer/internal/progress"
	"github.com/SkaSmat/city-explorer/internal/stream"
	"github.com/SkaSmat/city-explorer/internal/tracker"
	"github.com/SkaSmat/city-explorer/internal/trackstore"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Tracker *tracker.Tracker
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	var store kvcache.Store = kvcache.NewMemory()
	if s.Redis != nil {
		store = kvcache.NewRedis(s.Redis)
	}

	streets := overpass.NewService(s.Cfg.OverpassURL, store)
	records := trackstore.New(s.DB)

	source := tracker.NewPushSource()
	s.Tracker = tracker.New(source, streets, records, s.Stream)

	progressSvc := progress.NewService(progress.NewNominatim(s.Cfg.NominatimURL), streets, records, store)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB), jwtMiddleware)
	tracker.RegisterRoutes(s.App.Group("/tracking"), s.Tracker, source, jwtMiddleware)
	progress.RegisterRoutes(s.App.Group("/progress"), progressSvc, jwtMiddleware)
	badge.RegisterRoutes(s.App.Group("/badges"), badge.NewService(s.DB, records), jwtMiddleware)
	leaderboard.RegisterRoutes(s.App.Group("/leaderboard"), leaderboard.NewService(s.DB), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
