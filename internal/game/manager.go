package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Manager runs the crash round state machine. Round state lives in Redis, so
// any number of Managers (one per API instance) can drive the same round; the
// tick lock makes sure only one of them advances it at a time.
type Manager struct {
	cfg     Config
	rounds  *RoundStore
	ledger  *Ledger
	hub     Broadcaster
	archive Archiver

	now           func() time.Time
	crashPointFor func(Round) float64

	tickMu   sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	bg       sync.WaitGroup
}

func NewManager(redisClient *redis.Client, hub Broadcaster, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	if hub == nil {
		hub = nopBroadcaster{}
	}
	m := &Manager{
		cfg:      cfg,
		rounds:   NewRoundStore(redisClient, cfg),
		ledger:   NewLedger(redisClient, cfg),
		hub:      hub,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	m.crashPointFor = func(r Round) float64 {
		return HashAndMapToMultiplier(r.ServerSeed, r.GameID, r.Nonce, m.cfg.HouseEdge)
	}
	return m
}

// SetArchiver attaches durable storage for finished rounds. Call before Start.
func (m *Manager) SetArchiver(a Archiver) {
	m.archive = a
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// Start makes sure a round exists and launches the internal ticker.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Tick(ctx); err != nil {
		return fmt.Errorf("initial tick: %w", err)
	}
	m.loopDone = make(chan struct{})
	go m.gameLoop(ctx)
	log.Printf("[ENGINE] Started (tick every %s)", m.cfg.TickInterval)
	return nil
}

// Stop ends the ticker and waits for pending archive writes.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	if m.loopDone != nil {
		<-m.loopDone
	}
	m.bg.Wait()
	log.Println("[ENGINE] Stopped")
}

func (m *Manager) gameLoop(ctx context.Context) {
	defer close(m.loopDone)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				log.Printf("[ENGINE] Tick failed: %v", err)
			}
		}
	}
}

// Tick advances whatever the current state needs. Calling it concurrently,
// redundantly or after a long gap is safe: transitions are driven by wall
// clock comparisons and guarded by the tick lock.
func (m *Manager) Tick(ctx context.Context) error {
	return m.withTickLock(ctx, func(ctx context.Context) error {
		now := m.now()
		r, err := m.rounds.Load(ctx)
		if errors.Is(err, ErrRoundNotFound) {
			return m.reset(ctx, now)
		}
		if err != nil {
			return err
		}

		switch r.State {
		case StateInactive:
			if !r.NextGameStart.IsZero() && !now.Before(r.NextGameStart) {
				return m.startCountdown(ctx, r, now)
			}
		case StateCountdown:
			return m.advanceCountdown(ctx, r, now)
		case StateActive:
			return m.advanceActive(ctx, r, now)
		case StateCrashed:
			if now.Sub(r.CrashedAt) >= m.cfg.CooldownTime {
				return m.reset(ctx, now)
			}
		default:
			log.Printf("[ENGINE] Unknown round state %q, resetting", r.State)
			return m.reset(ctx, now)
		}
		return nil
	})
}

// AdvanceCountdown is the driver entry point for the countdown phase.
func (m *Manager) AdvanceCountdown(ctx context.Context) error {
	return m.withTickLock(ctx, func(ctx context.Context) error {
		r, err := m.rounds.Load(ctx)
		if err != nil {
			return ignoreMissing(err)
		}
		if r.State != StateCountdown {
			return nil
		}
		return m.advanceCountdown(ctx, r, m.now())
	})
}

// AdvanceActiveTick is the driver entry point for the running phase.
func (m *Manager) AdvanceActiveTick(ctx context.Context) error {
	return m.withTickLock(ctx, func(ctx context.Context) error {
		r, err := m.rounds.Load(ctx)
		if err != nil {
			return ignoreMissing(err)
		}
		if r.State != StateActive {
			return nil
		}
		return m.advanceActive(ctx, r, m.now())
	})
}

// Reset is the driver entry point for the cool-down phase. It only resets a
// crashed round whose cool-down has elapsed, or a store with no round at all.
func (m *Manager) Reset(ctx context.Context) error {
	return m.withTickLock(ctx, func(ctx context.Context) error {
		now := m.now()
		r, err := m.rounds.Load(ctx)
		if errors.Is(err, ErrRoundNotFound) {
			return m.reset(ctx, now)
		}
		if err != nil {
			return err
		}
		if r.State == StateCrashed && now.Sub(r.CrashedAt) >= m.cfg.CooldownTime {
			return m.reset(ctx, now)
		}
		return nil
	})
}

// GetState returns the client view of the round.
func (m *Manager) GetState(ctx context.Context) (Snapshot, error) {
	r, snap, err := m.rounds.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.BettingOpen = m.bettingOpen(r, m.now())
	return snap, nil
}

func (m *Manager) bettingOpen(r Round, now time.Time) bool {
	switch r.State {
	case StateInactive:
		return true
	case StateCountdown:
		return r.CountdownEndsAt.Sub(now) > m.cfg.BettingCloseTime
	default:
		return false
	}
}

// withTickLock runs fn while holding both the in-process and the Redis tick
// lock. Failing to get either one is a silent no-op.
func (m *Manager) withTickLock(ctx context.Context, fn func(context.Context) error) error {
	if !m.tickMu.TryLock() {
		return nil
	}
	defer m.tickMu.Unlock()

	token := uuid.NewString()
	ok, err := m.rounds.AcquireTickLock(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer m.rounds.ReleaseTickLock(context.WithoutCancel(ctx), token)

	return fn(ctx)
}

func (m *Manager) reset(ctx context.Context, now time.Time) error {
	r, err := m.rounds.Reset(ctx, now)
	if err != nil {
		return err
	}
	log.Printf("[ROUND] New game %s (commitment %s...)", r.GameID, r.HashCommitment[:16])
	m.broadcastState(ctx)
	return nil
}

func (m *Manager) startCountdown(ctx context.Context, r Round, now time.Time) error {
	ok, err := m.rounds.StartCountdown(ctx, r.GameID, now)
	if err != nil || !ok {
		return err
	}
	log.Printf("[ROUND] Game %s countdown started", r.GameID)
	m.broadcastState(ctx)
	return nil
}

func (m *Manager) advanceCountdown(ctx context.Context, r Round, now time.Time) error {
	remaining := secondsLeft(r.CountdownEndsAt, now)
	if remaining <= 0 {
		return m.activate(ctx, r, now)
	}
	if remaining == r.Countdown {
		return nil
	}
	ok, err := m.rounds.SetCountdown(ctx, r.GameID, remaining)
	if err != nil || !ok {
		return err
	}
	m.hub.Broadcast(EventCountdown, CountdownMessage{
		GameID:      r.GameID,
		Countdown:   remaining,
		BettingOpen: r.CountdownEndsAt.Sub(now) > m.cfg.BettingCloseTime,
	})
	return nil
}

// activate commits the crash point. This is the only place it is generated,
// and nothing derived from it leaves the server until the crash.
func (m *Manager) activate(ctx context.Context, r Round, now time.Time) error {
	crashPoint := m.crashPointFor(r)
	if crashPoint < MIN_CRASH_POINT {
		crashPoint = MIN_CRASH_POINT
	}
	ok, err := m.rounds.Activate(ctx, r.GameID, crashPoint, now)
	if err != nil || !ok {
		return err
	}
	log.Printf("[ROUND] Game %s running", r.GameID)
	m.broadcastState(ctx)
	return nil
}

func (m *Manager) advanceActive(ctx context.Context, r Round, now time.Time) error {
	last := r.LastTickAt
	if last.IsZero() {
		last = r.ActiveSince
	}
	var dt time.Duration
	if !last.IsZero() {
		dt = now.Sub(last)
	}
	return m.stepActive(ctx, r, Grow(r.Multiplier, dt, m.cfg.Growth), now)
}

// stepActive applies a newly computed multiplier: auto-cashouts first, then
// the crash check, then the store update.
func (m *Manager) stepActive(ctx context.Context, r Round, next float64, now time.Time) error {
	if next < r.Multiplier {
		next = r.Multiplier
	}
	if r.CrashPoint < MIN_CRASH_POINT {
		r.CrashPoint = MIN_CRASH_POINT
	}

	crashed := next >= r.CrashPoint
	limit := next
	if crashed {
		limit = r.CrashPoint
	}

	if err := m.processAutoCashouts(ctx, r, limit); err != nil {
		return err
	}
	if crashed {
		return m.crash(ctx, r, now)
	}

	ok, err := m.rounds.SetMultiplier(ctx, r.GameID, next, now)
	if err != nil || !ok {
		return err
	}
	m.hub.Broadcast(EventMultiplier, MultiplierMessage{
		GameID:     r.GameID,
		Multiplier: floor2(next),
	})
	return nil
}

func (m *Manager) crash(ctx context.Context, r Round, now time.Time) error {
	losers, joined, err := m.rounds.Crash(ctx, r, newHistoryEntry(r.CrashPoint, now), now)
	if errors.Is(err, ErrStaleRound) {
		return nil
	}
	if err != nil {
		return err
	}

	lost, err := m.ledger.bets(ctx, losers)
	if err != nil {
		log.Printf("[ROUND] Failed to load losing bets for %s: %v", r.GameID, err)
	}
	for _, bet := range lost {
		m.hub.SendTo(bet.Username, EventGameLost, GameLostMessage{
			GameID:     r.GameID,
			Amount:     bet.Amount,
			CrashPoint: r.CrashPoint,
		})
		m.archiveSettlement(Settlement{
			GameID:    r.GameID,
			Username:  bet.Username,
			BetAmount: bet.Amount,
			Outcome:   OutcomeLost,
			SettledAt: now,
		})
		log.Printf("[LOSS] User %s lost %.2f", bet.Username, bet.Amount)
	}

	history, err := m.rounds.History(ctx)
	if err != nil {
		log.Printf("[ROUND] Failed to load history: %v", err)
	}
	m.hub.Broadcast(EventGameCrashed, GameCrashedMessage{
		GameID:         r.GameID,
		CrashPoint:     r.CrashPoint,
		ServerSeed:     r.ServerSeed,
		HashCommitment: r.HashCommitment,
		Nonce:          r.Nonce,
		History:        history,
	})

	summary := RoundSummary{
		GameID:         r.GameID,
		CrashPoint:     r.CrashPoint,
		ServerSeed:     r.ServerSeed,
		HashCommitment: r.HashCommitment,
		Nonce:          r.Nonce,
		Players:        joined,
		StartedAt:      r.ActiveSince,
		CrashedAt:      now,
	}
	m.archiveAsync("round "+r.GameID, func(ctx context.Context, a Archiver) error {
		return a.ArchiveRound(ctx, summary)
	})

	log.Printf("=== ROUND %s CRASHED at %.2fx (%d players, %d lost) ===", r.GameID, r.CrashPoint, joined, len(losers))
	return nil
}

func (m *Manager) broadcastState(ctx context.Context) {
	snap, err := m.GetState(ctx)
	if err != nil {
		log.Printf("[ENGINE] Failed to build state snapshot: %v", err)
		return
	}
	m.hub.Broadcast(EventGameState, snap)
}

func (m *Manager) archiveSettlement(s Settlement) {
	m.archiveAsync("settlement "+s.GameID+"/"+s.Username, func(ctx context.Context, a Archiver) error {
		return a.ArchiveSettlement(ctx, s)
	})
}

func (m *Manager) archiveAsync(what string, fn func(context.Context, Archiver) error) {
	if m.archive == nil {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ArchiveTimeout)
		defer cancel()
		if err := fn(ctx, m.archive); err != nil {
			log.Printf("[ARCHIVE] Failed to archive %s: %v", what, err)
		}
	}()
}

// secondsLeft rounds the remaining time up to whole seconds.
func secondsLeft(deadline, now time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func ignoreMissing(err error) error {
	if errors.Is(err, ErrRoundNotFound) {
		return nil
	}
	return err
}
