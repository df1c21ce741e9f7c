package game

import "time"

const (
	MIN_AUTO_CASHOUT = 1.01
	DEFAULT_PREFIX   = "crash"
)

// Config holds the timing and money parameters of the crash round.
type Config struct {
	KeyPrefix string

	TickInterval     time.Duration
	CountdownTime    time.Duration
	BettingCloseTime time.Duration
	CooldownTime     time.Duration
	NextGameDelay    time.Duration
	TickLockTTL      time.Duration
	ArchiveTimeout   time.Duration

	HistorySize    int
	HouseEdge      float64
	DefaultBalance float64
	MaxBet         float64

	Growth GrowthConfig
}

func DefaultConfig() Config {
	return Config{
		KeyPrefix:        DEFAULT_PREFIX,
		TickInterval:     60 * time.Millisecond,
		CountdownTime:    10 * time.Second,
		BettingCloseTime: 3 * time.Second,
		CooldownTime:     5 * time.Second,
		NextGameDelay:    10 * time.Second,
		TickLockTTL:      2 * time.Second,
		ArchiveTimeout:   3 * time.Second,
		HistorySize:      20,
		HouseEdge:        HOUSE_EDGE,
		DefaultBalance:   1000,
		MaxBet:           10000,
		Growth:           DefaultGrowth(),
	}
}

// withDefaults fills zero fields so a partially populated Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.KeyPrefix == "" {
		c.KeyPrefix = d.KeyPrefix
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.CountdownTime <= 0 {
		c.CountdownTime = d.CountdownTime
	}
	if c.BettingCloseTime < 0 || c.BettingCloseTime >= c.CountdownTime {
		c.BettingCloseTime = d.BettingCloseTime
	}
	if c.CooldownTime <= 0 {
		c.CooldownTime = d.CooldownTime
	}
	if c.NextGameDelay <= 0 {
		c.NextGameDelay = d.NextGameDelay
	}
	if c.TickLockTTL <= 0 {
		c.TickLockTTL = d.TickLockTTL
	}
	if c.ArchiveTimeout <= 0 {
		c.ArchiveTimeout = d.ArchiveTimeout
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.HouseEdge <= 0 || c.HouseEdge >= 1 {
		c.HouseEdge = d.HouseEdge
	}
	if c.DefaultBalance < 0 {
		c.DefaultBalance = d.DefaultBalance
	}
	if c.Growth.BaseRate <= 0 {
		c.Growth = d.Growth
	}
	return c
}
