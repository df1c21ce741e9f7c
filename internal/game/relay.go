package game

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

type relayEnvelope struct {
	Event string          `json:"event"`
	User  string          `json:"user,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RedisBroadcaster publishes events on a Redis channel so every API instance
// can deliver them to its own websocket clients. Pair it with Hub.Relay.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroadcaster(rdb *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: channel}
}

func (b *RedisBroadcaster) Broadcast(event string, data interface{}) {
	b.publish("", event, data)
}

func (b *RedisBroadcaster) SendTo(username, event string, data interface{}) {
	if username == "" {
		return
	}
	b.publish(username, event, data)
}

func (b *RedisBroadcaster) publish(username, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[RELAY] Marshal error for %s: %v", event, err)
		return
	}
	payload, err := json.Marshal(relayEnvelope{Event: event, User: username, Data: raw})
	if err != nil {
		log.Printf("[RELAY] Marshal error for %s: %v", event, err)
		return
	}
	if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		log.Printf("[RELAY] Publish %s failed: %v", event, err)
	}
}

// Relay subscribes to channel and hands every event to this hub's clients.
// It returns when ctx is done.
func (h *Hub) Relay(ctx context.Context, rdb *redis.Client, channel string) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("[RELAY] Subscribed to %s", channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[RELAY] Dropping malformed event: %v", err)
				continue
			}
			payload, err := json.Marshal(WSMessage{Type: env.Event, Data: env.Data})
			if err != nil {
				continue
			}
			h.push(outbound{username: env.User, payload: payload})
		}
	}
}
