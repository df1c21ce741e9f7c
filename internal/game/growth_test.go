package game

import (
	"testing"
	"time"
)

func TestGrow(t *testing.T) {
	g := DefaultGrowth()

	if got := Grow(1.0, 0, g); got != 1.0 {
		t.Errorf("Grow(1, 0) = %v, want 1", got)
	}
	if got := Grow(1.5, -time.Second, g); got != 1.5 {
		t.Errorf("Grow with negative dt = %v, want 1.5", got)
	}
	if got := Grow(0.5, time.Second, g); got <= MIN_MULTIPLIER {
		t.Errorf("Grow from below minimum = %v, want > %v", got, MIN_MULTIPLIER)
	}

	m := 1.0
	for i := 0; i < 100; i++ {
		next := Grow(m, 60*time.Millisecond, g)
		if next <= m {
			t.Fatalf("tick %d: multiplier did not increase: %v -> %v", i, m, next)
		}
		m = next
	}
}

func TestGrow_Accelerates(t *testing.T) {
	g := DefaultGrowth()
	slow := Grow(1.0, time.Second, g) / 1.0
	fast := Grow(5.0, time.Second, g) / 5.0
	if fast <= slow {
		t.Errorf("relative growth at 5x (%v) should exceed growth at 1x (%v)", fast, slow)
	}
}

func TestGrow_Capped(t *testing.T) {
	if got := Grow(MAX_MULTIPLIER/2, time.Hour, DefaultGrowth()); got != MAX_MULTIPLIER {
		t.Errorf("Grow() = %v, want cap %v", got, MAX_MULTIPLIER)
	}
}

func TestFloor2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.0, 1.0},
		{1.999, 1.99},
		{2.0, 2.0},
		{1.8, 1.8},
		{12.345, 12.34},
	}
	for _, tt := range tests {
		if got := floor2(tt.in); got != tt.want {
			t.Errorf("floor2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHistoryColor(t *testing.T) {
	tests := []struct {
		crash float64
		want  HistoryColor
	}{
		{1.01, ColorRed},
		{1.99, ColorRed},
		{2.0, ColorOrange},
		{9.99, ColorOrange},
		{10.0, ColorGreen},
		{250, ColorGreen},
	}
	for _, tt := range tests {
		if got := historyColor(tt.crash); got != tt.want {
			t.Errorf("historyColor(%v) = %v, want %v", tt.crash, got, tt.want)
		}
	}
}

func TestSecondsLeft(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	tests := []struct {
		deadline time.Time
		want     int
	}{
		{time.Time{}, 0},
		{now.Add(-time.Second), 0},
		{now, 0},
		{now.Add(time.Millisecond), 1},
		{now.Add(time.Second), 1},
		{now.Add(9500 * time.Millisecond), 10},
	}
	for _, tt := range tests {
		if got := secondsLeft(tt.deadline, now); got != tt.want {
			t.Errorf("secondsLeft(%v) = %v, want %v", tt.deadline.Sub(now), got, tt.want)
		}
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{CountdownTime: 5 * time.Second, BettingCloseTime: 10 * time.Second}.withDefaults()
	if c.KeyPrefix != DEFAULT_PREFIX {
		t.Errorf("KeyPrefix = %q, want %q", c.KeyPrefix, DEFAULT_PREFIX)
	}
	if c.CountdownTime != 5*time.Second {
		t.Errorf("CountdownTime = %v, want 5s", c.CountdownTime)
	}
	if c.BettingCloseTime >= c.CountdownTime {
		t.Errorf("BettingCloseTime %v should be below CountdownTime %v", c.BettingCloseTime, c.CountdownTime)
	}
	if c.HistorySize != 20 {
		t.Errorf("HistorySize = %d, want 20", c.HistorySize)
	}
}
