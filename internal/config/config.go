package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"crash/internal/cache"
	"crash/internal/database"
	"crash/internal/game"
)

type Config struct {
	Port           int
	Redis          cache.Options
	Database       database.Options
	Game           game.Config
	ArchiveEnabled bool
	MigrationsPath string
	DriverToken    string
	InternalTicker bool
	EventsChannel  string
}

// Load reads the environment (and a .env file when present).
func Load() Config {
	g := game.DefaultConfig()
	g.KeyPrefix = getEnv("REDIS_KEY_PREFIX", g.KeyPrefix)
	g.TickInterval = getEnvAsDuration("CRASH_TICK_INTERVAL_MS", time.Millisecond, g.TickInterval)
	g.CountdownTime = getEnvAsDuration("CRASH_COUNTDOWN_SECONDS", time.Second, g.CountdownTime)
	g.BettingCloseTime = getEnvAsDuration("CRASH_BETTING_CLOSE_SECONDS", time.Second, g.BettingCloseTime)
	g.CooldownTime = getEnvAsDuration("CRASH_COOLDOWN_SECONDS", time.Second, g.CooldownTime)
	g.NextGameDelay = getEnvAsDuration("CRASH_NEXT_GAME_DELAY_SECONDS", time.Second, g.NextGameDelay)
	g.HistorySize = getEnvAsInt("CRASH_HISTORY_SIZE", g.HistorySize)
	g.HouseEdge = getEnvAsFloat("CRASH_HOUSE_EDGE", g.HouseEdge)
	g.DefaultBalance = getEnvAsFloat("CRASH_DEFAULT_BALANCE", g.DefaultBalance)
	g.MaxBet = getEnvAsFloat("CRASH_MAX_BET", g.MaxBet)

	return Config{
		Port: getEnvAsInt("PORT", 8080),
		Redis: cache.Options{
			Addr:     getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: database.Options{
			Host:     getEnv("BLUEPRINT_DB_HOST", "localhost"),
			Port:     getEnv("BLUEPRINT_DB_PORT", "5432"),
			Database: getEnv("BLUEPRINT_DB_DATABASE", "crashdb"),
			Username: getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
			Password: getEnv("BLUEPRINT_DB_PASSWORD", "postgres"),
			Schema:   getEnv("BLUEPRINT_DB_SCHEMA", "public"),
		},
		Game:           g,
		ArchiveEnabled: getEnvAsBool("ARCHIVE_ENABLED", false),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		DriverToken:    getEnv("DRIVER_TOKEN", ""),
		InternalTicker: getEnvAsBool("INTERNAL_TICKER", true),
		EventsChannel:  getEnv("EVENTS_CHANNEL", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration reads an integer count of unit.
func getEnvAsDuration(key string, unit, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return time.Duration(n) * unit
		}
	}
	return defaultVal
}
