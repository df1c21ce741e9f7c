package game

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one websocket connection. All frames for it go through send and
// are written by a single goroutine, so they arrive in the order queued.
type Client struct {
	conn     Conn
	username string
	send     chan []byte
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

type outbound struct {
	username string
	payload  []byte
}

// Hub owns the websocket clients of this instance and implements Broadcaster.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (Total: %d)", client.username, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				log.Printf("[WS] Client disconnected: %s (Total: %d)", client.username, len(h.clients))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if msg.username != "" && client.username != msg.username {
					continue
				}
				client.enqueue(msg.payload)
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for every connected client. A full queue drops
// the event rather than stall the round.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.enqueue("", event, data)
}

// SendTo queues an event for the connections of one player.
func (h *Hub) SendTo(username, event string, data interface{}) {
	if username == "" {
		return
	}
	h.enqueue(username, event, data)
}

func (h *Hub) enqueue(username, event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Type: event, Data: data})
	if err != nil {
		log.Printf("[WS] Marshal error for %s: %v", event, err)
		return
	}
	h.push(outbound{username: username, payload: payload})
}

func (h *Hub) push(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("[WS] Broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
}

// writePump is the only writer of c.conn. It closes the connection once the
// send queue is closed and drained.
func (c *Client) writePump() {
	defer close(c.done)
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[WS] Write error for user %s: %v", c.username, err)
			c.close()
			for range c.send {
			}
			return
		}
	}
}

func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("[WS] Send buffer full for user %s, dropping message", c.username)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SendJSON queues one message for this client only.
func (c *Client) SendJSON(event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Type: event, Data: data})
	if err != nil {
		log.Printf("[WS] Send marshal error: %v", err)
		return
	}
	c.enqueue(payload)
}

func (c *Client) SendInitialState(state Snapshot) {
	c.SendJSON("initial_state", state)
}

func (h *Hub) RegisterClient(conn Conn, username string) *Client {
	client := &Client{
		conn:     conn,
		username: username,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	go client.writePump()

	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
	return client
}

// UnregisterClient removes the client and waits for its writer to finish, so
// the connection is not written to after the caller returns.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
	<-client.done
}
