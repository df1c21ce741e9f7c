package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const renameRetries = 3

// Ledger holds per-player money and round-scoped bet fields. Player records
// are created lazily with the default balance.
type Ledger struct {
	rdb  *redis.Client
	keys Keys
	cfg  Config
}

func NewLedger(rdb *redis.Client, cfg Config) *Ledger {
	cfg = cfg.withDefaults()
	return &Ledger{
		rdb:  rdb,
		keys: NewKeys(cfg.KeyPrefix),
		cfg:  cfg,
	}
}

// PlayerBet is a player's open position in the current round.
type PlayerBet struct {
	Username    string
	Amount      float64
	AutoCashout float64 // zero when not set
}

type placeBetResult struct {
	Outcome          string // ok, window, already, balance
	Balance          float64
	CountdownStarted bool
	PlayersJoined    int64
}

type settleResult struct {
	Outcome string // ok, inactive, settled
	Balance float64
}

func (l *Ledger) Balance(ctx context.Context, username string) (float64, error) {
	key := l.keys.Player(username)
	if err := l.rdb.HSetNX(ctx, key, fieldBalance, formatFloat(l.cfg.DefaultBalance)).Err(); err != nil {
		return 0, fmt.Errorf("init balance: %w", err)
	}
	balance, err := l.rdb.HGet(ctx, key, fieldBalance).Float64()
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites a balance (admin and test tooling only).
func (l *Ledger) SetBalance(ctx context.Context, username string, balance float64) error {
	if err := l.rdb.HSet(ctx, l.keys.Player(username), fieldBalance, formatFloat(balance)).Err(); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (l *Ledger) placeBet(ctx context.Context, bet PlayerBet, now time.Time) (placeBetResult, error) {
	auto := ""
	if bet.AutoCashout > 0 {
		auto = formatFloat(bet.AutoCashout)
	}
	res, err := placeBetScript.Run(ctx, l.rdb,
		[]string{l.keys.Round, l.keys.Participants, l.keys.InRound, l.keys.Player(bet.Username)},
		bet.Username,
		formatFloat(bet.Amount),
		auto,
		now.UnixMilli(),
		l.cfg.BettingCloseTime.Milliseconds(),
		now.Add(l.cfg.CountdownTime).UnixMilli(),
		int(l.cfg.CountdownTime/time.Second),
		formatFloat(l.cfg.DefaultBalance),
	).Result()
	if err != nil {
		return placeBetResult{}, fmt.Errorf("place bet script: %w", err)
	}
	reply, err := scriptStrings(res)
	if err != nil {
		return placeBetResult{}, err
	}

	out := placeBetResult{Outcome: reply[0]}
	switch reply[0] {
	case "ok":
		if len(reply) < 4 {
			return placeBetResult{}, ErrBadScriptReply
		}
		out.Balance = parseFloat(reply[1])
		out.CountdownStarted = reply[2] == "1"
		out.PlayersJoined, _ = strconv.ParseInt(reply[3], 10, 64)
	case "balance":
		if len(reply) > 1 {
			out.Balance = parseFloat(reply[1])
		}
	}
	return out, nil
}

// settle credits bet*multiplier if and only if this call removes the player
// from the in-round set.
func (l *Ledger) settle(ctx context.Context, gameID, username string, multiplier, payout float64) (settleResult, error) {
	res, err := settleScript.Run(ctx, l.rdb,
		[]string{l.keys.Round, l.keys.InRound, l.keys.Player(username)},
		username, gameID, formatFloat(multiplier), formatFloat(payout),
	).Result()
	if err != nil {
		return settleResult{}, fmt.Errorf("settle script: %w", err)
	}
	reply, err := scriptStrings(res)
	if err != nil {
		return settleResult{}, err
	}
	out := settleResult{Outcome: reply[0]}
	if reply[0] == "ok" && len(reply) > 1 {
		out.Balance = parseFloat(reply[1])
	}
	return out, nil
}

// IsParticipant reports whether the player joined the current round.
func (l *Ledger) IsParticipant(ctx context.Context, username string) (bool, error) {
	ok, err := l.rdb.SIsMember(ctx, l.keys.Participants, username).Result()
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

// Bet reads a single player's open bet.
func (l *Ledger) Bet(ctx context.Context, username string) (PlayerBet, error) {
	vals, err := l.rdb.HMGet(ctx, l.keys.Player(username), fieldBetAmount, fieldAutoCashout).Result()
	if err != nil {
		return PlayerBet{}, fmt.Errorf("read bet: %w", err)
	}
	return playerBetFrom(username, vals), nil
}

// OpenBets returns every unsettled bet of the round in one pipeline.
func (l *Ledger) OpenBets(ctx context.Context) ([]PlayerBet, error) {
	names, err := l.rdb.SMembers(ctx, l.keys.InRound).Result()
	if err != nil {
		return nil, fmt.Errorf("load in-round set: %w", err)
	}
	return l.bets(ctx, names)
}

func (l *Ledger) bets(ctx context.Context, names []string) ([]PlayerBet, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.SliceCmd, len(names))
	_, err := l.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HMGet(ctx, l.keys.Player(name), fieldBetAmount, fieldAutoCashout)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load bets: %w", err)
	}
	bets := make([]PlayerBet, 0, len(names))
	for i, name := range names {
		bets = append(bets, playerBetFrom(name, cmds[i].Val()))
	}
	return bets, nil
}

// Register creates a fresh player record. It reports false when the name is
// already taken.
func (l *Ledger) Register(ctx context.Context, username string) (bool, error) {
	created, err := l.rdb.HSetNX(ctx, l.keys.Player(username), fieldBalance, formatFloat(l.cfg.DefaultBalance)).Result()
	if err != nil {
		return false, fmt.Errorf("register player: %w", err)
	}
	return created, nil
}

// Rename moves a player's record to a new name with an optimistic WATCH
// transaction. A concurrent bet or registration touching either name aborts
// the attempt and it is retried.
func (l *Ledger) Rename(ctx context.Context, oldName, newName string) (Reason, error) {
	oldKey, newKey := l.keys.Player(oldName), l.keys.Player(newName)
	var reason Reason

	txf := func(tx *redis.Tx) error {
		reason = ""
		taken, err := tx.Exists(ctx, newKey).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			reason = ReasonUsernameTaken
			return nil
		}
		playing, err := tx.SIsMember(ctx, l.keys.Participants, oldName).Result()
		if err != nil {
			return err
		}
		if playing {
			reason = ReasonPlayerInRound
			return nil
		}
		exists, err := tx.Exists(ctx, oldKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if exists > 0 {
				pipe.Rename(ctx, oldKey, newKey)
			} else {
				pipe.HSet(ctx, newKey, fieldBalance, formatFloat(l.cfg.DefaultBalance))
			}
			return nil
		})
		return err
	}

	for i := 0; i < renameRetries; i++ {
		err := l.rdb.Watch(ctx, txf, oldKey, newKey, l.keys.Participants)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("rename player: %w", err)
		}
		return reason, nil
	}
	return "", fmt.Errorf("rename player: %w", redis.TxFailedErr)
}

func playerBetFrom(username string, vals []interface{}) PlayerBet {
	bet := PlayerBet{Username: username}
	if len(vals) > 0 {
		if s, ok := vals[0].(string); ok {
			bet.Amount = parseFloat(s)
		}
	}
	if len(vals) > 1 {
		if s, ok := vals[1].(string); ok {
			bet.AutoCashout = parseFloat(s)
		}
	}
	return bet
}

// payout returns amount*multiplier truncated to cents.
func payout(amount, multiplier float64) float64 {
	v, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(multiplier)).
		RoundDown(2).
		Float64()
	return v
}
