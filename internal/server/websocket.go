package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"crash/internal/game"
)

type clientMessage struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout"`
}

// gameWebSocketHandler streams round events and accepts bets and cashouts
// for the player named in the query string. Connections without a username
// only watch.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	username := conn.Query("username")
	if username != "" && !game.ValidUsername(username) {
		username = ""
	}

	log.Printf("[WS] New connection from user: %q", username)

	client := s.gameHub.RegisterClient(conn, username)
	defer s.gameHub.UnregisterClient(client)

	ctx := context.Background()
	if state, err := s.gameManager.GetState(ctx); err == nil {
		client.SendInitialState(state)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for user %q: %v", username, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "place_bet":
			resp, err := s.gameManager.PlaceBet(ctx, game.BetRequest{
				Username:    username,
				Amount:      msg.Amount,
				AutoCashout: msg.AutoCashout,
			})
			if err != nil {
				log.Printf("[WS] Bet failed for user %q: %v", username, err)
			}
			client.SendJSON("bet_result", resp)

		case "cashout":
			resp, err := s.gameManager.Cashout(ctx, game.CashoutRequest{Username: username})
			if err != nil {
				log.Printf("[WS] Cashout failed for user %q: %v", username, err)
			}
			client.SendJSON("cashout_result", resp)

		case "get_state":
			if state, err := s.gameManager.GetState(ctx); err == nil {
				client.SendJSON(game.EventGameState, state)
			}

		case "ping":
			client.SendJSON("pong", nil)
		}
	}
}
