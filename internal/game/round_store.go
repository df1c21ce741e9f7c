package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RoundStore is the typed view of the round hash, the history list and the
// round-scoped sets. It keeps no state of its own; every call goes to Redis.
type RoundStore struct {
	rdb  *redis.Client
	keys Keys
	cfg  Config
}

func NewRoundStore(rdb *redis.Client, cfg Config) *RoundStore {
	cfg = cfg.withDefaults()
	return &RoundStore{
		rdb:  rdb,
		keys: NewKeys(cfg.KeyPrefix),
		cfg:  cfg,
	}
}

func (s *RoundStore) Keys() Keys {
	return s.keys
}

// Load reads the round hash. It returns ErrRoundNotFound when no round has
// been initialised by Reset, including a hash that lacks a game id or seed.
func (s *RoundStore) Load(ctx context.Context) (Round, error) {
	fields, err := s.rdb.HGetAll(ctx, s.keys.Round).Result()
	if err != nil {
		return Round{}, fmt.Errorf("load round: %w", err)
	}
	if !initialised(fields) {
		return Round{}, ErrRoundNotFound
	}
	return parseRound(fields), nil
}

// Snapshot reads round, player count and history in one best-effort pipeline.
// No transaction: a view that is one tick stale is fine for display.
func (s *RoundStore) Snapshot(ctx context.Context) (Round, Snapshot, error) {
	var (
		roundCmd   *redis.MapStringStringCmd
		joinedCmd  *redis.IntCmd
		historyCmd *redis.StringSliceCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		roundCmd = pipe.HGetAll(ctx, s.keys.Round)
		joinedCmd = pipe.SCard(ctx, s.keys.Participants)
		historyCmd = pipe.LRange(ctx, s.keys.History, 0, int64(s.cfg.HistorySize-1))
		return nil
	})
	if err != nil {
		return Round{}, Snapshot{}, fmt.Errorf("snapshot pipeline: %w", err)
	}

	fields := roundCmd.Val()
	if !initialised(fields) {
		return Round{}, Snapshot{}, ErrRoundNotFound
	}
	r := parseRound(fields)

	snap := Snapshot{
		State:          r.State,
		Multiplier:     floor2(r.Multiplier),
		Countdown:      r.Countdown,
		PlayersJoined:  joinedCmd.Val(),
		History:        decodeHistory(historyCmd.Val()),
		GameID:         r.GameID,
		HashCommitment: r.HashCommitment,
	}
	if !r.NextGameStart.IsZero() {
		snap.NextGameStart = r.NextGameStart.UnixMilli()
	}
	return r, snap, nil
}

// History returns up to the configured number of entries, newest first.
func (s *RoundStore) History(ctx context.Context) ([]HistoryEntry, error) {
	raw, err := s.rdb.LRange(ctx, s.keys.History, 0, int64(s.cfg.HistorySize-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return decodeHistory(raw), nil
}

// Reset clears the round and starts a fresh game. Everything happens in one
// MULTI/EXEC so readers see either the old round or the new one. It must run
// under the tick lock.
func (s *RoundStore) Reset(ctx context.Context, now time.Time) (Round, error) {
	players, err := s.rdb.SMembers(ctx, s.keys.Participants).Result()
	if err != nil {
		return Round{}, fmt.Errorf("load participants: %w", err)
	}

	seed := GenerateSeed()
	r := Round{
		State:          StateInactive,
		Multiplier:     MIN_MULTIPLIER,
		GameID:         uuid.NewString(),
		NextGameStart:  now.Add(s.cfg.NextGameDelay),
		ServerSeed:     seed,
		HashCommitment: HashCommitment(seed),
	}

	var nonceCmd *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.keys.Round,
			fieldCrashPoint, fieldCountdownEndsAt, fieldActiveSince, fieldLastTickAt, fieldCrashedAt)
		pipe.HSet(ctx, s.keys.Round,
			fieldState, string(r.State),
			fieldMultiplier, formatFloat(r.Multiplier),
			fieldCountdown, 0,
			fieldGameID, r.GameID,
			fieldNextGameStart, formatMillis(r.NextGameStart),
			fieldServerSeed, r.ServerSeed,
			fieldCommitment, r.HashCommitment,
		)
		nonceCmd = pipe.HIncrBy(ctx, s.keys.Round, fieldNonce, 1)
		for _, name := range players {
			pipe.HDel(ctx, s.keys.Player(name), fieldBetAmount, fieldAutoCashout, fieldCashedOutAt, fieldWinnings)
		}
		pipe.Del(ctx, s.keys.InRound, s.keys.Participants)
		return nil
	})
	if err != nil {
		return Round{}, fmt.Errorf("reset round: %w", err)
	}
	r.Nonce = nonceCmd.Val()
	return r, nil
}

// StartCountdown moves an idle round into COUNTDOWN.
func (s *RoundStore) StartCountdown(ctx context.Context, gameID string, now time.Time) (bool, error) {
	seconds := int(s.cfg.CountdownTime / time.Second)
	return s.compareAndSet(ctx, StateInactive, gameID,
		fieldState, string(StateCountdown),
		fieldCountdown, strconv.Itoa(seconds),
		fieldCountdownEndsAt, formatMillis(now.Add(s.cfg.CountdownTime)),
	)
}

func (s *RoundStore) SetCountdown(ctx context.Context, gameID string, seconds int) (bool, error) {
	return s.compareAndSet(ctx, StateCountdown, gameID, fieldCountdown, strconv.Itoa(seconds))
}

// Activate commits the crash point and starts the multiplier. The state guard
// makes it impossible to commit a second crash point for the same game.
func (s *RoundStore) Activate(ctx context.Context, gameID string, crashPoint float64, now time.Time) (bool, error) {
	return s.compareAndSet(ctx, StateCountdown, gameID,
		fieldState, string(StateActive),
		fieldCountdown, "0",
		fieldMultiplier, formatFloat(MIN_MULTIPLIER),
		fieldCrashPoint, formatFloat(crashPoint),
		fieldActiveSince, formatMillis(now),
		fieldLastTickAt, formatMillis(now),
	)
}

func (s *RoundStore) SetMultiplier(ctx context.Context, gameID string, m float64, now time.Time) (bool, error) {
	return s.compareAndSet(ctx, StateActive, gameID,
		fieldMultiplier, formatFloat(m),
		fieldLastTickAt, formatMillis(now),
	)
}

// Crash pins the multiplier at the crash point, records history and clears
// the in-round set. It returns the players who were still in the round and
// the number of players who joined it.
func (s *RoundStore) Crash(ctx context.Context, r Round, entry HistoryEntry, now time.Time) ([]string, int, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, 0, fmt.Errorf("encode history entry: %w", err)
	}
	res, err := crashScript.Run(ctx, s.rdb,
		[]string{s.keys.Round, s.keys.History, s.keys.InRound, s.keys.Participants},
		r.GameID, formatFloat(r.CrashPoint), string(payload), formatMillis(now), s.cfg.HistorySize,
	).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("crash round: %w", err)
	}
	reply, err := scriptStrings(res)
	if err != nil {
		return nil, 0, err
	}
	if reply[0] != "ok" {
		return nil, 0, ErrStaleRound
	}
	joined, _ := strconv.Atoi(reply[1])
	return reply[2:], joined, nil
}

// AcquireTickLock takes the expiring tick lock. The TTL bounds how long a hung
// holder can wedge the round.
func (s *RoundStore) AcquireTickLock(ctx context.Context, token string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.keys.TickLock, token, s.cfg.TickLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire tick lock: %w", err)
	}
	return ok, nil
}

func (s *RoundStore) ReleaseTickLock(ctx context.Context, token string) {
	if err := releaseLockScript.Run(ctx, s.rdb, []string{s.keys.TickLock}, token).Err(); err != nil {
		log.Printf("[ROUND] Failed to release tick lock: %v", err)
	}
}

func (s *RoundStore) compareAndSet(ctx context.Context, expect State, gameID string, pairs ...string) (bool, error) {
	args := make([]interface{}, 0, len(pairs)+2)
	args = append(args, string(expect), gameID)
	for _, p := range pairs {
		args = append(args, p)
	}
	n, err := casRoundScript.Run(ctx, s.rdb, []string{s.keys.Round}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("update round: %w", err)
	}
	return n == 1, nil
}

func initialised(f map[string]string) bool {
	return f[fieldState] != "" && f[fieldGameID] != "" && f[fieldServerSeed] != ""
}

func parseRound(f map[string]string) Round {
	r := Round{
		State:          State(f[fieldState]),
		Multiplier:     parseFloat(f[fieldMultiplier]),
		CrashPoint:     parseFloat(f[fieldCrashPoint]),
		GameID:         f[fieldGameID],
		ServerSeed:     f[fieldServerSeed],
		HashCommitment: f[fieldCommitment],
	}
	r.Countdown, _ = strconv.Atoi(f[fieldCountdown])
	r.Nonce, _ = strconv.ParseInt(f[fieldNonce], 10, 64)
	r.NextGameStart = parseMillis(f[fieldNextGameStart])
	r.CountdownEndsAt = parseMillis(f[fieldCountdownEndsAt])
	r.ActiveSince = parseMillis(f[fieldActiveSince])
	r.LastTickAt = parseMillis(f[fieldLastTickAt])
	r.CrashedAt = parseMillis(f[fieldCrashedAt])
	if r.Multiplier < MIN_MULTIPLIER {
		r.Multiplier = MIN_MULTIPLIER
	}
	return r
}

func decodeHistory(raw []string) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			log.Printf("[ROUND] Skipping malformed history entry: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func newHistoryEntry(crashPoint float64, at time.Time) HistoryEntry {
	return HistoryEntry{
		Value:     strconv.FormatFloat(crashPoint, 'f', 2, 64),
		Color:     historyColor(crashPoint),
		Timestamp: at.UnixMilli(),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
