package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"crash/internal/game"
)

// Service is the durable archive of finished rounds. It implements
// game.Archiver.
type Service interface {
	Health() map[string]string
	Close() error
	ArchiveRound(ctx context.Context, round game.RoundSummary) error
	ArchiveSettlement(ctx context.Context, s game.Settlement) error
	RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error)
}

type Options struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

// DSN renders the options as a postgres:// URL.
func (o Options) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(o.Username, o.Password),
		Host:   o.Host + ":" + o.Port,
		Path:   "/" + o.Database,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	if o.Schema != "" {
		q.Set("search_path", o.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type service struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, opts Options) (Service, error) {
	config, err := pgxpool.ParseConfig(opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 45 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams["application_name"] = "crash"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Printf("[DB] Connected to %s:%s/%s", opts.Host, opts.Port, opts.Database)
	return &service{pool: pool}, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	st := s.pool.Stat()
	stats["total_conns"] = strconv.Itoa(int(st.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(st.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(st.AcquiredConns()))
	stats["acquire_count"] = strconv.FormatInt(st.AcquireCount(), 10)
	stats["max_conns"] = strconv.Itoa(int(st.MaxConns()))

	return stats
}

func (s *service) Close() error {
	log.Println("[DB] Disconnecting from database")
	s.pool.Close()
	return nil
}

func (s *service) ArchiveRound(ctx context.Context, r game.RoundSummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crash_rounds
			(game_id, crash_point, server_seed, hash_commitment, nonce, players, started_at, crashed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO NOTHING`,
		r.GameID, r.CrashPoint, r.ServerSeed, r.HashCommitment, r.Nonce, r.Players,
		nullTime(r.StartedAt), r.CrashedAt,
	)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", r.GameID, err)
	}
	return nil
}

func (s *service) ArchiveSettlement(ctx context.Context, st game.Settlement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crash_settlements
			(game_id, username, bet_amount, multiplier, payout, outcome, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id, username) DO NOTHING`,
		st.GameID, st.Username, st.BetAmount, st.Multiplier, st.Payout, string(st.Outcome), st.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement %s/%s: %w", st.GameID, st.Username, err)
	}
	return nil
}

// RecentRounds returns the latest archived rounds, newest first.
func (s *service) RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, crash_point, server_seed, hash_commitment, nonce, players, started_at, crashed_at
		FROM crash_rounds
		ORDER BY crashed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []game.RoundSummary
	for rows.Next() {
		var (
			r       game.RoundSummary
			started *time.Time
		)
		if err := rows.Scan(&r.GameID, &r.CrashPoint, &r.ServerSeed, &r.HashCommitment,
			&r.Nonce, &r.Players, &started, &r.CrashedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if started != nil {
			r.StartedAt = *started
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
