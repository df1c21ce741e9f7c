package game

// Keys names every Redis key the engine touches. All keys share a prefix so
// several games (or test runs) can live in one database.
type Keys struct {
	Round        string // hash: round fields
	History      string // list: JSON history entries, newest first
	InRound      string // set: players with an open, unsettled bet
	Participants string // set: every player who bet this round
	TickLock     string // string: tick lock token
	playerPrefix string
}

func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DEFAULT_PREFIX
	}
	return Keys{
		Round:        prefix + ":round",
		History:      prefix + ":history",
		InRound:      prefix + ":round:inround",
		Participants: prefix + ":round:players",
		TickLock:     prefix + ":lock:tick",
		playerPrefix: prefix + ":player:",
	}
}

func (k Keys) Player(username string) string {
	return k.playerPrefix + username
}

// Round hash fields.
const (
	fieldState           = "state"
	fieldMultiplier      = "multiplier"
	fieldCrashPoint      = "crash_point"
	fieldCountdown       = "countdown"
	fieldGameID          = "game_id"
	fieldNextGameStart   = "next_game_start"
	fieldCountdownEndsAt = "countdown_ends_at"
	fieldActiveSince     = "active_since"
	fieldLastTickAt      = "last_tick_at"
	fieldCrashedAt       = "crashed_at"
	fieldServerSeed      = "server_seed"
	fieldCommitment      = "hash_commitment"
	fieldNonce           = "nonce"
)

// Player hash fields.
const (
	fieldBalance     = "balance"
	fieldBetAmount   = "bet_amount"
	fieldAutoCashout = "auto_cashout"
	fieldCashedOutAt = "cashed_out_at"
	fieldWinnings    = "winnings"
)
