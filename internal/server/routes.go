package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type,X-Driver-Token",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Get("/game/state", s.getGameStateHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashoutHandler)
	api.Get("/game/rounds", s.recentRoundsHandler)
	api.Get("/game/verify", s.verifyRoundHandler)
	api.Post("/user/username", s.updateUsernameHandler)
	api.Get("/user/:username/balance", s.getUserBalanceHandler)
	// Overwriting a balance is an operator action.
	api.Post("/user/:username/balance", s.requireDriverToken, s.setUserBalanceHandler)

	// Driver endpoints for deployments that tick the round from outside.
	internal := s.App.Group("/internal", s.requireDriverToken)
	internal.Post("/tick", s.driverHandler(s.gameManager.Tick))
	internal.Post("/countdown", s.driverHandler(s.gameManager.AdvanceCountdown))
	internal.Post("/active", s.driverHandler(s.gameManager.AdvanceActiveTick))
	internal.Post("/reset", s.driverHandler(s.gameManager.Reset))

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}
