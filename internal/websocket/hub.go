// Package websocket pushes pipeline progress events to connected dashboard
// clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"donorcli/internal/infrastructure"
)

// Message type constants
const (
	TypeConnection       = "connection"
	TypeResolveProgress  = "geocode:progress"
	TypePipelineProgress = "pipeline:progress"
	TypePipelineComplete = "pipeline:complete"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is the envelope pushed to every client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewHub creates a new Hub instance.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start runs the hub loop in a goroutine. Safe to call once.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("hub shut down")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", len(h.clients)))
			client.enqueue(mustMarshal(Message{
				Type: TypeConnection,
				Data: map[string]string{"status": "connected"},
			}))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("client unregistered",
					slog.String("client_id", client.id),
					slog.Int("total_clients", len(h.clients)))
			}

		case payload := <-h.broadcast:
			for client := range h.clients {
				client.enqueue(payload)
			}
		}
	}
}

// Broadcast sends a typed message to all connected clients. Never blocks the
// caller; slow clients drop messages.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	payload := mustMarshal(Message{Type: msgType, Data: data})
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast buffer full, message dropped",
			slog.String("type", msgType))
	}
}

func mustMarshal(msg Message) []byte {
	payload, err := json.Marshal(msg)
	if err != nil {
		// Message data is always plain structs and maps
		panic(err)
	}
	return payload
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from the same origin as the API
		return true
	},
}

// Client is one websocket connection managed by the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades an HTTP request to a websocket connection and registers it
// with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// enqueue offers a payload to the client without blocking the hub loop.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		// Slow consumer; drop rather than stall every other client
	}
}

// readPump drains inbound frames so pings and close frames are processed.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued payloads and periodic pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
