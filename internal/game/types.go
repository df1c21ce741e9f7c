package game

import (
	"time"
)

type State string

const (
	StateInactive  State = "INACTIVE"
	StateCountdown State = "COUNTDOWN"
	StateActive    State = "ACTIVE"
	StateCrashed   State = "CRASHED"
)

// Round is the stored view of the singleton crash round.
type Round struct {
	State           State
	Multiplier      float64
	CrashPoint      float64 // zero until the round becomes ACTIVE
	Countdown       int
	GameID          string
	NextGameStart   time.Time
	CountdownEndsAt time.Time
	ActiveSince     time.Time
	LastTickAt      time.Time
	CrashedAt       time.Time
	ServerSeed      string
	HashCommitment  string
	Nonce           int64
}

// Snapshot is what clients see of the round. The crash point and server seed
// never appear here.
type Snapshot struct {
	State          State          `json:"state"`
	Multiplier     float64        `json:"multiplier"`
	Countdown      int            `json:"countdown"`
	BettingOpen    bool           `json:"betting_open"`
	PlayersJoined  int64          `json:"players_joined"`
	History        []HistoryEntry `json:"history"`
	NextGameStart  int64          `json:"next_game_start"`
	GameID         string         `json:"game_id"`
	HashCommitment string         `json:"hash_commitment"`
}

type HistoryColor string

const (
	ColorRed    HistoryColor = "red"
	ColorOrange HistoryColor = "orange"
	ColorGreen  HistoryColor = "green"
)

type HistoryEntry struct {
	Value     string       `json:"value"`
	Color     HistoryColor `json:"color"`
	Timestamp int64        `json:"timestamp"`
}

type BetRequest struct {
	Username    string  `json:"username"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type BetResponse struct {
	Success       bool    `json:"success"`
	Reason        Reason  `json:"reason,omitempty"`
	Message       string  `json:"message"`
	GameID        string  `json:"game_id,omitempty"`
	Balance       float64 `json:"balance"`
	PlayersJoined int64   `json:"players_joined,omitempty"`
}

type CashoutRequest struct {
	Username string `json:"username"`
}

type CashoutResponse struct {
	Success    bool    `json:"success"`
	Reason     Reason  `json:"reason,omitempty"`
	Message    string  `json:"message"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Winnings   float64 `json:"winnings,omitempty"`
	Balance    float64 `json:"balance,omitempty"`
}

type UsernameRequest struct {
	Old string `json:"old,omitempty"`
	New string `json:"new"`
}

type UsernameResponse struct {
	Success bool    `json:"success"`
	Reason  Reason  `json:"reason,omitempty"`
	Message string  `json:"message"`
	Balance float64 `json:"balance,omitempty"`
}

// Settlement records how a player's bet ended for a round.
type Settlement struct {
	GameID     string    `json:"game_id"`
	Username   string    `json:"username"`
	BetAmount  float64   `json:"bet_amount"`
	Multiplier float64   `json:"multiplier"`
	Payout     float64   `json:"payout"`
	Outcome    Outcome   `json:"outcome"`
	SettledAt  time.Time `json:"settled_at"`
}

type Outcome string

const (
	OutcomeCashout     Outcome = "cashout"
	OutcomeAutoCashout Outcome = "auto_cashout"
	OutcomeLost        Outcome = "lost"
)

// RoundSummary is the archived record of a crashed round.
type RoundSummary struct {
	GameID         string    `json:"game_id"`
	CrashPoint     float64   `json:"crash_point"`
	ServerSeed     string    `json:"server_seed"`
	HashCommitment string    `json:"hash_commitment"`
	Nonce          int64     `json:"nonce"`
	Players        int       `json:"players"`
	StartedAt      time.Time `json:"started_at"`
	CrashedAt      time.Time `json:"crashed_at"`
}
