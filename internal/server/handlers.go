package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"crash/internal/game"
)

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	dbHealth := map[string]string{"status": "disabled"}
	if s.db != nil {
		dbHealth = s.db.Health()
	}
	health := fiber.Map{
		"database": dbHealth,
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	state, err := s.gameManager.GetState(c.UserContext())
	if errors.Is(err, game.ErrRoundNotFound) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No game round yet",
		})
	}
	if err != nil {
		return unavailable(c, err)
	}
	return c.JSON(state)
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.gameManager.PlaceBet(c.UserContext(), req)
	if err != nil {
		return unavailable(c, err)
	}
	if !resp.Success {
		return c.Status(statusFor(resp.Reason)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.gameManager.Cashout(c.UserContext(), req)
	if err != nil {
		return unavailable(c, err)
	}
	if !resp.Success {
		return c.Status(statusFor(resp.Reason)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) updateUsernameHandler(c *fiber.Ctx) error {
	var req game.UsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.gameManager.UpdateUsername(c.UserContext(), req)
	if err != nil {
		return unavailable(c, err)
	}
	if !resp.Success {
		return c.Status(statusFor(resp.Reason)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) recentRoundsHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Round archive is disabled",
		})
	}
	rounds, err := s.db.RecentRounds(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return unavailable(c, err)
	}
	if rounds == nil {
		rounds = []game.RoundSummary{}
	}
	return c.JSON(fiber.Map{"rounds": rounds})
}

// verifyRoundHandler recomputes a revealed round so players can audit it.
func (s *FiberServer) verifyRoundHandler(c *fiber.Ctx) error {
	seed := c.Query("server_seed")
	gameID := c.Query("game_id")
	nonce, err := strconv.ParseInt(c.Query("nonce"), 10, 64)
	if seed == "" || gameID == "" || err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "server_seed, game_id and nonce are required",
		})
	}

	houseEdge := s.gameManager.Config().HouseEdge
	crashPoint := game.HashAndMapToMultiplier(seed, gameID, nonce, houseEdge)
	result := fiber.Map{
		"game_id":         gameID,
		"nonce":           nonce,
		"crash_point":     crashPoint,
		"hash_commitment": game.HashCommitment(seed),
	}
	if claimed := c.Query("crash_point"); claimed != "" {
		v, err := strconv.ParseFloat(claimed, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid crash_point",
			})
		}
		result["valid"] = game.VerifyRound(seed, c.Query("commitment"), gameID, nonce, houseEdge, v)
	}
	return c.JSON(result)
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	username := c.Params("username")
	if !game.ValidUsername(username) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid username",
		})
	}

	balance, err := s.gameManager.Balance(c.UserContext(), username)
	if err != nil {
		return unavailable(c, err)
	}

	return c.JSON(fiber.Map{
		"username": username,
		"balance":  balance,
	})
}

// setUserBalanceHandler sets a user's balance (for testing/admin)
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	username := c.Params("username")
	if !game.ValidUsername(username) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid username",
		})
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil || body.Balance < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := s.gameManager.SetBalance(c.UserContext(), username, body.Balance); err != nil {
		return unavailable(c, err)
	}

	return c.JSON(fiber.Map{
		"username": username,
		"balance":  body.Balance,
		"message":  "Balance updated successfully",
	})
}

func (s *FiberServer) requireDriverToken(c *fiber.Ctx) error {
	if s.cfg.DriverToken == "" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Driver endpoints are disabled",
		})
	}
	token := c.Get("X-Driver-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.DriverToken)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid driver token",
		})
	}
	return c.Next()
}

func (s *FiberServer) driverHandler(op func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := op(c.UserContext()); err != nil {
			return unavailable(c, err)
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

func statusFor(reason game.Reason) int {
	switch reason {
	case game.ReasonInvalidAmount, game.ReasonInvalidAutoCashout, game.ReasonInvalidUsername:
		return fiber.StatusBadRequest
	case game.ReasonUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusConflict
	}
}

func unavailable(c *fiber.Ctx, err error) error {
	log.Printf("[SERVER] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"success": false,
		"reason":  game.ReasonUnavailable,
		"message": game.ReasonUnavailable.Message(),
	})
}
