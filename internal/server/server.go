package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"crash/internal/cache"
	"crash/internal/config"
	"crash/internal/database"
	"crash/internal/game"
)

type FiberServer struct {
	*fiber.App

	db          database.Service
	cache       cache.Service
	gameManager *game.Manager
	gameHub     *game.Hub
	cfg         config.Config
}

// New connects Redis (required) and, when enabled, the Postgres archive.
func New(ctx context.Context, cfg config.Config) (*FiberServer, error) {
	redisService, err := cache.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis is required for game state: %w", err)
	}

	var db database.Service
	if cfg.ArchiveEnabled {
		if err := database.RunMigrations(cfg.Database.DSN(), cfg.MigrationsPath); err != nil {
			redisService.Close()
			return nil, err
		}
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			redisService.Close()
			return nil, err
		}
	}

	return newFiberServer(cfg, redisService, db), nil
}

func newFiberServer(cfg config.Config, redisService cache.Service, db database.Service) *FiberServer {
	hub := game.NewHub()

	var events game.Broadcaster = hub
	if cfg.EventsChannel != "" {
		events = game.NewRedisBroadcaster(redisService.GetClient(), cfg.EventsChannel)
	}

	manager := game.NewManager(redisService.GetClient(), events, cfg.Game)
	if db != nil {
		manager.SetArchiver(db)
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crash",
			AppName:       "crash",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:          db,
		cache:       redisService,
		gameManager: manager,
		gameHub:     hub,
		cfg:         cfg,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws" || c.Path() == "/health"
		},
	}))

	return server
}

// RunHub runs the websocket hub (and the Redis relay when configured) until
// ctx is done.
func (s *FiberServer) RunHub(ctx context.Context) error {
	if s.cfg.EventsChannel == "" {
		s.gameHub.Run(ctx)
		return nil
	}
	go s.gameHub.Run(ctx)
	return s.gameHub.Relay(ctx, s.cache.GetClient(), s.cfg.EventsChannel)
}

// StartEngine launches the internal ticker unless an external driver is used.
func (s *FiberServer) StartEngine(ctx context.Context) error {
	if !s.cfg.InternalTicker {
		log.Println("[SERVER] Internal ticker disabled, waiting for driver calls")
		return nil
	}
	return s.gameManager.Start(ctx)
}

// Shutdown gracefully shuts down the server and game components
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	err := s.App.ShutdownWithTimeout(10 * time.Second)

	if s.gameManager != nil {
		s.gameManager.Stop()
	}

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return err
}
