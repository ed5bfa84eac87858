// Package ws pushes session events to browser clients over websockets and
// accepts chat commands from them.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/ws"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	sendBuffer      = 256
	broadcastBuffer = 1024

	// Commands run detached from the socket, bounded by this timeout.
	commandTimeout = 6 * time.Minute
)

// Commands executes what clients ask for over the socket.
type Commands interface {
	Send(ctx context.Context, sessionID, text string) error
	Select(ctx context.Context, sessionID, characterID string) error
}

// inbound is a client-to-server frame.
type inbound struct {
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	CharacterID string `json:"characterId,omitempty"`
}

type Client struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
}

// Hub fans session events out to the connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan ws.Event
	register   chan *Client
	unregister chan *Client
	commands   Commands
	upgrader   websocket.Upgrader
	log        *logger.Logger
	mu         sync.RWMutex
	done       chan struct{}
}

// NewHub creates a hub. An empty origin list accepts any origin.
func NewHub(allowedOrigins []string, commands Commands, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan ws.Event, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   commands,
		log:        log.WithComponent("ws"),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

// SetCommands attaches the command handler after construction.
func (h *Hub) SetCommands(c Commands) {
	h.mu.Lock()
	h.commands = c
	h.mu.Unlock()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Publish queues an event for delivery. A full queue drops the event.
func (h *Hub) Publish(e ws.Event) {
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn("event dropped, broadcast queue full", "type", e.Type, "session_id", e.SessionID)
	}
}

// Run delivers events until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("client registered", "client_id", client.ID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Info("client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.LogError(err, "failed to encode event", "type", event.Type)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if event.SessionID != "" && event.SessionID != client.SessionID {
					continue
				}
				select {
				case client.Send <- data:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn("client removed due to blocked channel", "client_id", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.LogError(err, "websocket read failed", "client_id", c.ID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inbound) {
	c.Hub.mu.RLock()
	commands := c.Hub.commands
	c.Hub.mu.RUnlock()

	switch msg.Type {
	case "ping":
		c.send(ws.NewEvent(ws.EventPong, c.SessionID, nil))
	case "chat", "select":
		if commands == nil {
			c.sendError("chat is not available")
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			var err error
			if msg.Type == "chat" {
				err = commands.Send(ctx, c.SessionID, msg.Content)
			} else {
				err = commands.Select(ctx, c.SessionID, msg.CharacterID)
			}
			if err != nil {
				c.sendError(err.Error())
			}
		}()
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

// send writes directly to this client, bypassing the hub queue.
func (c *Client) send(e ws.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.send(ws.NewEvent(ws.EventError, c.SessionID, map[string]string{"message": message}))
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the client to the session named
// by the sessionId query parameter or the X-Session-ID header.
func ServeWs(hub *Hub, c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = c.GetHeader("X-Session-ID")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "websocket upgrade failed")
		return
	}

	client := &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       hub,
	}
	if hello, err := json.Marshal(ws.NewEvent(ws.EventConnected, sessionID, map[string]string{"clientId": client.ID})); err == nil {
		client.Send <- hello
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
