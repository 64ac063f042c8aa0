package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const writeDeadline = 10 * time.Second

type Client struct {
	conn      *websocket.Conn
	contextID string
	mu        sync.Mutex
}

// Hub fans round and bet events out to websocket clients. Delivery is
// fire-and-forget: a full broadcast channel drops the event rather than
// block the game loop.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (Total: %d)", client.contextID, h.GetClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				log.Printf("[WS] Client disconnected: %s (Total: %d)", client.contextID, len(h.clients))
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				go client.send(payload)
			}
			h.mu.RUnlock()
		}
	}
}

// Publish satisfies the Publisher contract consumed by the ledger and
// scheduler.
func (h *Hub) Publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("[WS] Broadcast channel full, dropping event")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[WS] Write error for %s: %v", c.contextID, err)
	}
}

// SendEvent delivers one event to a single client, used for the initial
// round snapshot on connect.
func (c *Client) SendEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WS] Marshal error: %v", err)
		return
	}
	c.send(payload)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, contextID string) *Client {
	client := &Client{
		conn:      conn,
		contextID: contextID,
	}
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}
