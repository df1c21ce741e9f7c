package game

// Event names pushed to clients.
const (
	EventGameState       = "game-state"
	EventCountdown       = "countdown"
	EventMultiplier      = "multiplier-update"
	EventPlayerJoined    = "player-joined"
	EventBetAccepted     = "bet-accepted"
	EventCashoutSuccess  = "cashout-success"
	EventPlayerCashedOut = "player-cashed-out"
	EventGameLost        = "game-lost"
	EventGameCrashed     = "game-crashed"
)

// Broadcaster fans events out to connected clients. Broadcast goes to
// everyone, SendTo only to the connections of one player. Implementations
// must not block the caller.
type Broadcaster interface {
	Broadcast(event string, data interface{})
	SendTo(username, event string, data interface{})
}

// WSMessage is the envelope written to websocket clients.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type CountdownMessage struct {
	GameID      string `json:"game_id"`
	Countdown   int    `json:"countdown"`
	BettingOpen bool   `json:"betting_open"`
}

type MultiplierMessage struct {
	GameID     string  `json:"game_id"`
	Multiplier float64 `json:"multiplier"`
}

type PlayerJoinedMessage struct {
	GameID        string  `json:"game_id"`
	Username      string  `json:"username"`
	Amount        float64 `json:"amount"`
	PlayersJoined int64   `json:"players_joined"`
}

type BetAcceptedMessage struct {
	GameID      string  `json:"game_id"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
	Balance     float64 `json:"balance"`
}

type CashoutMessage struct {
	GameID     string  `json:"game_id"`
	Username   string  `json:"username"`
	Multiplier float64 `json:"multiplier"`
	Winnings   float64 `json:"winnings"`
	Balance    float64 `json:"balance,omitempty"`
	Auto       bool    `json:"auto"`
}

type GameLostMessage struct {
	GameID     string  `json:"game_id"`
	Amount     float64 `json:"amount"`
	CrashPoint float64 `json:"crash_point"`
}

type GameCrashedMessage struct {
	GameID         string         `json:"game_id"`
	CrashPoint     float64        `json:"crash_point"`
	ServerSeed     string         `json:"server_seed"`
	HashCommitment string         `json:"hash_commitment"`
	Nonce          int64          `json:"nonce"`
	History        []HistoryEntry `json:"history"`
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, interface{})      {}
func (nopBroadcaster) SendTo(string, string, interface{}) {}
