package game

import (
	"context"
	"testing"
)

func TestLedger_Balance(t *testing.T) {
	e := newTestEnv(t, 5)
	ctx := context.Background()

	if got := e.balance(t, "alice"); got != 1000 {
		t.Errorf("default balance = %v, want 1000", got)
	}
	if err := e.m.SetBalance(ctx, "alice", 42.5); err != nil {
		t.Fatalf("SetBalance() error = %v", err)
	}
	if got := e.balance(t, "alice"); got != 42.5 {
		t.Errorf("balance = %v, want 42.5", got)
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		amount, multiplier, want float64
	}{
		{100, 2.0, 200},
		{50, 1.5, 75},
		{10, 1.01, 10.1},
		{0.1, 3.33, 0.33},
		{33.33, 1.07, 35.66},
		{10.01, 1.99, 19.91},
		{0.15, 1.5, 0.22},
	}
	for _, tt := range tests {
		if got := payout(tt.amount, tt.multiplier); got != tt.want {
			t.Errorf("payout(%v, %v) = %v, want %v", tt.amount, tt.multiplier, got, tt.want)
		}
	}
}

func TestManager_UpdateUsername(t *testing.T) {
	e := newTestEnv(t, 5)
	ctx := context.Background()
	e.tick(t)

	update := func(oldName, newName string) UsernameResponse {
		t.Helper()
		resp, err := e.m.UpdateUsername(ctx, UsernameRequest{Old: oldName, New: newName})
		if err != nil {
			t.Fatalf("UpdateUsername(%q, %q) error = %v", oldName, newName, err)
		}
		return resp
	}

	if resp := update("", "carol"); !resp.Success || resp.Balance != 1000 {
		t.Fatalf("register carol = %+v", resp)
	}
	if resp := update("", "carol"); resp.Reason != ReasonUsernameTaken {
		t.Errorf("second register reason = %s, want %s", resp.Reason, ReasonUsernameTaken)
	}

	if err := e.m.SetBalance(ctx, "carol", 250); err != nil {
		t.Fatalf("SetBalance() error = %v", err)
	}
	if resp := update("carol", "dave"); !resp.Success || resp.Balance != 250 {
		t.Fatalf("rename carol -> dave = %+v, want balance 250", resp)
	}
	exists, err := e.rdb.Exists(ctx, e.m.rounds.Keys().Player("carol")).Result()
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists != 0 {
		t.Error("old player record still exists after rename")
	}

	if resp := update("dave", "dave"); resp.Reason != ReasonUsernameTaken {
		t.Errorf("rename to same name reason = %s, want %s", resp.Reason, ReasonUsernameTaken)
	}

	update("", "erin")
	if resp := update("dave", "erin"); resp.Reason != ReasonUsernameTaken {
		t.Errorf("rename onto existing name reason = %s, want %s", resp.Reason, ReasonUsernameTaken)
	}

	if resp := update("ghost", "frank"); !resp.Success || resp.Balance != 1000 {
		t.Errorf("rename of unknown player = %+v, want fresh record", resp)
	}

	if resp := update("dave", "x"); resp.Reason != ReasonInvalidUsername {
		t.Errorf("rename to invalid name reason = %s, want %s", resp.Reason, ReasonInvalidUsername)
	}
}

func TestManager_UpdateUsernameInRound(t *testing.T) {
	e := newTestEnv(t, 5)
	e.tick(t)
	e.bet(t, "alice", 10, 0)

	resp, err := e.m.UpdateUsername(context.Background(), UsernameRequest{Old: "alice", New: "alicia"})
	if err != nil {
		t.Fatalf("UpdateUsername() error = %v", err)
	}
	if resp.Success || resp.Reason != ReasonPlayerInRound {
		t.Errorf("rename during round = %+v, want PlayerInRound", resp)
	}
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"alice", true},
		{"player_01", true},
		{"a-b", true},
		{"a", false},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{"abcdefghijklmnopqrstuvwxyz0123456", false},
	}
	for _, tt := range tests {
		if got := ValidUsername(tt.name); got != tt.want {
			t.Errorf("ValidUsername(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
