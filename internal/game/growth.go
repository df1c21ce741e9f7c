package game

import (
	"math"
	"time"
)

// GrowthConfig parameterises the multiplier curve. The instantaneous growth
// rate is BaseRate + Acceleration*(m-1) per second, capped at MaxRate.
type GrowthConfig struct {
	BaseRate     float64
	Acceleration float64
	MaxRate      float64
}

func DefaultGrowth() GrowthConfig {
	return GrowthConfig{
		BaseRate:     0.08,
		Acceleration: 0.02,
		MaxRate:      2.0,
	}
}

func (g GrowthConfig) rate(m float64) float64 {
	r := g.BaseRate + g.Acceleration*(m-1)
	if g.MaxRate > 0 && r > g.MaxRate {
		r = g.MaxRate
	}
	return r
}

// Grow advances multiplier m by the wall-clock interval dt. It never returns a
// value below m, so duplicate or out-of-order ticks cannot move it backwards.
func Grow(m float64, dt time.Duration, g GrowthConfig) float64 {
	if m < MIN_MULTIPLIER {
		m = MIN_MULTIPLIER
	}
	if dt <= 0 {
		return m
	}
	next := m * math.Exp(g.rate(m)*dt.Seconds())
	if math.IsInf(next, 0) || math.IsNaN(next) || next > MAX_MULTIPLIER {
		return MAX_MULTIPLIER
	}
	return next
}

// floor2 truncates to two decimals, the precision used for payouts and display.
func floor2(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}

func historyColor(crashPoint float64) HistoryColor {
	switch {
	case crashPoint < 2:
		return ColorRed
	case crashPoint < 10:
		return ColorOrange
	default:
		return ColorGreen
	}
}
