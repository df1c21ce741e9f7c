package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,32}$`)

func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// PlaceBet stakes amount for the current round. A rejected bet returns
// Success=false with a Reason and a nil error; a non-nil error means the store
// could not be reached and nothing was written.
func (m *Manager) PlaceBet(ctx context.Context, req BetRequest) (BetResponse, error) {
	if reason := m.validateBet(req); reason != "" {
		return rejectBet(reason, 0), nil
	}

	res, err := m.ledger.placeBet(ctx, PlayerBet{
		Username:    req.Username,
		Amount:      req.Amount,
		AutoCashout: req.AutoCashout,
	}, m.now())
	if err != nil {
		log.Printf("[BET] Store failure for user %s: %v", req.Username, err)
		return rejectBet(ReasonUnavailable, 0), err
	}

	switch res.Outcome {
	case "ok":
	case "window":
		return rejectBet(ReasonNotInBettingWindow, 0), nil
	case "already":
		return rejectBet(ReasonAlreadyBetThisRound, 0), nil
	case "balance":
		return rejectBet(ReasonInsufficientBalance, res.Balance), nil
	default:
		return rejectBet(ReasonUnavailable, 0), fmt.Errorf("place bet: %w", ErrBadScriptReply)
	}

	r, _, err := m.rounds.Snapshot(ctx)
	if err != nil {
		log.Printf("[BET] Failed to read round after bet: %v", err)
	}

	m.hub.Broadcast(EventPlayerJoined, PlayerJoinedMessage{
		GameID:        r.GameID,
		Username:      req.Username,
		Amount:        req.Amount,
		PlayersJoined: res.PlayersJoined,
	})
	m.hub.SendTo(req.Username, EventBetAccepted, BetAcceptedMessage{
		GameID:      r.GameID,
		Amount:      req.Amount,
		AutoCashout: req.AutoCashout,
		Balance:     res.Balance,
	})
	if res.CountdownStarted {
		log.Printf("[ROUND] Game %s countdown started by first bet", r.GameID)
		m.broadcastState(ctx)
	}

	log.Printf("[BET] User %s placed %.2f (auto %.2f) in %s", req.Username, req.Amount, req.AutoCashout, r.GameID)

	return BetResponse{
		Success:       true,
		Message:       "Bet placed successfully",
		GameID:        r.GameID,
		Balance:       res.Balance,
		PlayersJoined: res.PlayersJoined,
	}, nil
}

func (m *Manager) validateBet(req BetRequest) Reason {
	if !ValidUsername(req.Username) {
		return ReasonInvalidUsername
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return ReasonInvalidAmount
	}
	if m.cfg.MaxBet > 0 && req.Amount > m.cfg.MaxBet {
		return ReasonInvalidAmount
	}
	if req.AutoCashout != 0 {
		if math.IsNaN(req.AutoCashout) || math.IsInf(req.AutoCashout, 0) ||
			req.AutoCashout < MIN_AUTO_CASHOUT || req.AutoCashout > MAX_MULTIPLIER {
			return ReasonInvalidAutoCashout
		}
	}
	return ""
}

// Cashout settles the player's bet at the current multiplier.
func (m *Manager) Cashout(ctx context.Context, req CashoutRequest) (CashoutResponse, error) {
	if !ValidUsername(req.Username) {
		return rejectCashout(ReasonInvalidUsername), nil
	}

	r, err := m.rounds.Load(ctx)
	if err != nil && !isMissing(err) {
		log.Printf("[CASHOUT] Store failure for user %s: %v", req.Username, err)
		return rejectCashout(ReasonUnavailable), err
	}
	if r.State != StateActive {
		return rejectCashout(ReasonRoundNotActive), nil
	}

	joined, err := m.ledger.IsParticipant(ctx, req.Username)
	if err != nil {
		log.Printf("[CASHOUT] Store failure for user %s: %v", req.Username, err)
		return rejectCashout(ReasonUnavailable), err
	}
	if !joined {
		return rejectCashout(ReasonNotPlaying), nil
	}

	bet, err := m.ledger.Bet(ctx, req.Username)
	if err != nil {
		log.Printf("[CASHOUT] Store failure for user %s: %v", req.Username, err)
		return rejectCashout(ReasonUnavailable), err
	}

	multiplier := floor2(r.Multiplier)
	res, win, err := m.settle(ctx, r.GameID, bet, multiplier, OutcomeCashout)
	if err != nil {
		return rejectCashout(ReasonUnavailable), err
	}

	switch res.Outcome {
	case "ok":
		return CashoutResponse{
			Success:    true,
			Message:    fmt.Sprintf("Cashed out at %.2fx", multiplier),
			Multiplier: multiplier,
			Winnings:   win,
			Balance:    res.Balance,
		}, nil
	case "settled":
		return rejectCashout(ReasonAlreadySettled), nil
	case "inactive":
		return rejectCashout(ReasonRoundNotActive), nil
	default:
		return rejectCashout(ReasonUnavailable), fmt.Errorf("cashout: %w", ErrBadScriptReply)
	}
}

// processAutoCashouts settles every open bet whose target is at or below
// limit. Each player is paid at their own target, not at the tick's
// multiplier, so the payout does not depend on tick granularity.
func (m *Manager) processAutoCashouts(ctx context.Context, r Round, limit float64) error {
	bets, err := m.ledger.OpenBets(ctx)
	if err != nil {
		return err
	}
	for _, bet := range bets {
		if bet.AutoCashout <= 0 || bet.AutoCashout > limit {
			continue
		}
		if _, _, err := m.settle(ctx, r.GameID, bet, bet.AutoCashout, OutcomeAutoCashout); err != nil {
			return err
		}
	}
	return nil
}

// settle runs the settlement script and publishes the result when this call
// was the one that settled the player.
func (m *Manager) settle(ctx context.Context, gameID string, bet PlayerBet, multiplier float64, outcome Outcome) (settleResult, float64, error) {
	win := payout(bet.Amount, multiplier)
	res, err := m.ledger.settle(ctx, gameID, bet.Username, multiplier, win)
	if err != nil {
		log.Printf("[CASHOUT] Store failure for user %s: %v", bet.Username, err)
		return settleResult{}, 0, err
	}
	if res.Outcome != "ok" {
		return res, 0, nil
	}

	msg := CashoutMessage{
		GameID:     gameID,
		Username:   bet.Username,
		Multiplier: multiplier,
		Winnings:   win,
		Auto:       outcome == OutcomeAutoCashout,
	}
	public := msg
	msg.Balance = res.Balance
	m.hub.SendTo(bet.Username, EventCashoutSuccess, msg)
	m.hub.Broadcast(EventPlayerCashedOut, public)

	m.archiveSettlement(Settlement{
		GameID:     gameID,
		Username:   bet.Username,
		BetAmount:  bet.Amount,
		Multiplier: multiplier,
		Payout:     win,
		Outcome:    outcome,
		SettledAt:  m.now(),
	})

	log.Printf("[CASHOUT] User %s cashed out at %.2fx (%s, payout %.2f)", bet.Username, multiplier, outcome, win)
	return res, win, nil
}

// UpdateUsername registers newName when oldName is empty, otherwise renames
// the player's ledger record.
func (m *Manager) UpdateUsername(ctx context.Context, req UsernameRequest) (UsernameResponse, error) {
	if !ValidUsername(req.New) || (req.Old != "" && !ValidUsername(req.Old)) {
		return rejectUsername(ReasonInvalidUsername), nil
	}
	if req.Old == req.New {
		return rejectUsername(ReasonUsernameTaken), nil
	}

	if req.Old == "" {
		created, err := m.ledger.Register(ctx, req.New)
		if err != nil {
			log.Printf("[PLAYER] Store failure registering %s: %v", req.New, err)
			return rejectUsername(ReasonUnavailable), err
		}
		if !created {
			return rejectUsername(ReasonUsernameTaken), nil
		}
	} else {
		reason, err := m.ledger.Rename(ctx, req.Old, req.New)
		if err != nil {
			log.Printf("[PLAYER] Store failure renaming %s: %v", req.Old, err)
			return rejectUsername(ReasonUnavailable), err
		}
		if reason != "" {
			return rejectUsername(reason), nil
		}
	}

	balance, err := m.ledger.Balance(ctx, req.New)
	if err != nil {
		log.Printf("[PLAYER] Failed to read balance for %s: %v", req.New, err)
	}
	log.Printf("[PLAYER] Username %q -> %q", req.Old, req.New)
	return UsernameResponse{Success: true, Message: "Username updated", Balance: balance}, nil
}

// Balance returns the player's balance, creating the record if needed.
func (m *Manager) Balance(ctx context.Context, username string) (float64, error) {
	return m.ledger.Balance(ctx, username)
}

func (m *Manager) SetBalance(ctx context.Context, username string, balance float64) error {
	return m.ledger.SetBalance(ctx, username, balance)
}

func rejectBet(reason Reason, balance float64) BetResponse {
	return BetResponse{Reason: reason, Message: reason.Message(), Balance: balance}
}

func rejectCashout(reason Reason) CashoutResponse {
	return CashoutResponse{Reason: reason, Message: reason.Message()}
}

func rejectUsername(reason Reason) UsernameResponse {
	return UsernameResponse{Reason: reason, Message: reason.Message()}
}

func isMissing(err error) bool {
	return errors.Is(err, ErrRoundNotFound)
}
