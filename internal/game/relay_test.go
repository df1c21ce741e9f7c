package game

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRelay_DeliversPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := startHub(t)
	alice, bob := &fakeConn{}, &fakeConn{}
	hub.RegisterClient(alice, "alice")
	hub.RegisterClient(bob, "bob")

	ctx, cancel := context.WithCancel(context.Background())
	relayDone := make(chan error, 1)
	go func() { relayDone <- hub.Relay(ctx, rdb, "crash:events") }()

	waitFor(t, "relay subscription", func() bool {
		return mr.PubSubNumSub("crash:events")["crash:events"] == 1
	})

	pub := NewRedisBroadcaster(rdb, "crash:events")
	pub.Broadcast(EventCountdown, CountdownMessage{GameID: "g1", Countdown: 5, BettingOpen: true})
	pub.SendTo("bob", EventGameLost, GameLostMessage{GameID: "g1", Amount: 10, CrashPoint: 1.2})

	waitFor(t, "alice delivery", func() bool { return len(alice.types()) == 1 })
	waitFor(t, "bob delivery", func() bool { return len(bob.types()) == 2 })
	if got := alice.types()[0]; got != EventCountdown {
		t.Errorf("alice got %s, want %s", got, EventCountdown)
	}

	cancel()
	if err := <-relayDone; err != nil {
		t.Errorf("Relay() error = %v", err)
	}
}
