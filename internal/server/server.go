package server

import (
	"log"

	"github.com/Carlosrossos/dlh-backend/internal/auth"
	"github.com/Carlosrossos/dlh-backend/internal/config"
	"github.com/Carlosrossos/dlh-backend/internal/moderation"
	"github.com/Carlosrossos/dlh-backend/internal/notify"
	"github.com/Carlosrossos/dlh-backend/internal/poi"
	"github.com/Carlosrossos/dlh-backend/internal/ratelimit"
	"github.com/Carlosrossos/dlh-backend/internal/upload"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Outbox *notify.Outbox
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	mailer := notify.NewMailer(cfg)

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Outbox: notify.NewOutbox(redisClient, mailer),
	}

	registerRoutes(s, mailer)
	return s
}

func registerRoutes(s *Server, mailer *notify.Mailer) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	adminMiddleware := auth.RequireAdmin()
	limiter := ratelimit.New(s.Redis, s.Cfg.RateLimitPerMinute)

	poiService := poi.NewService(s.DB)
	moderationService := moderation.NewService(s.DB, poiService, s.Outbox)

	var uploaderService moderation.Uploader
	if upl, err := upload.NewService(s.Cfg); err != nil {
		log.Printf("image host disabled: %v", err)
	} else {
		uploaderService = upl
	}

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB, mailer))
	poi.RegisterRoutes(s.App.Group("/pois"), poiService, jwtMiddleware)
	moderation.RegisterContributionRoutes(s.App.Group("/pois"), moderationService, uploaderService, jwtMiddleware, limiter)
	moderation.RegisterAdminRoutes(s.App.Group("/admin"), moderationService, jwtMiddleware, adminMiddleware)
}
