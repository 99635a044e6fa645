// Package websocket streams observer frames to connected clients over
// WebSocket connections: one set of clients per session id, broadcast on
// every resolved action batch.
package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/griddy-sim/griddy/kernel/process"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is left to a reverse proxy in front of this demo
	// harness; this module is not meant to be exposed directly.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope every WebSocket frame is wrapped in.
type Message struct {
	SessionID string             `json:"session_id"`
	State     *process.StateInfo `json:"state,omitempty"`
	Event     string             `json:"event,omitempty"`
	Data      any                `json:"data,omitempty"`
}

// Client is one connected WebSocket peer, subscribed to one session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub maintains the set of active clients, keyed by session id, and
// broadcasts messages to them.
type Hub struct {
	sessions   map[string]map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	logger     zerolog.Logger
}

// NewHub returns a hub with no clients registered. Call Run in its own
// goroutine before serving WebSocket connections.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run drives the hub's event loop. It never returns.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection subscribed to
// sessionID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), sessionID: sessionID}
	client.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastToSession sends a state update to every client subscribed to
// sessionID.
func (h *Hub) BroadcastToSession(sessionID string, state process.StateInfo) {
	message := &Message{SessionID: sessionID, State: &state, Event: "state_update"}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal websocket message")
		return
	}
	if clients, ok := h.sessions[sessionID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				h.unregisterClient(client)
			}
		}
	}
}

// BroadcastEvent sends a custom event, routed through the hub's event loop
// so it interleaves correctly with register/unregister.
func (h *Hub) BroadcastEvent(sessionID, event string, data any) {
	h.broadcast <- &Message{SessionID: sessionID, Event: event, Data: data}
}

func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true
	h.logger.Debug().Str("session", client.sessionID).Int("clients", len(h.sessions[client.sessionID])).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal broadcast message")
		return
	}
	if clients, ok := h.sessions[message.SessionID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				h.unregisterClient(client)
			}
		}
	}
}

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
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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
