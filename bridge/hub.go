package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"council-game-demo/client/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Envelope is the framing for every message pushed to a connected
// presentation client.
type Envelope struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// Hub fans controller notifications out to every connected presentation
// client. Clients are read-mostly: the only inbound messages are pings
// and explicit state requests.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	onState    func() any
	log        *logger.Logger
	mu         sync.Mutex
}

// Client is one connected websocket peer.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

// NewHub creates a hub. onState, when non-nil, supplies the full state
// payload returned to a client's explicit state request.
func NewHub(onState func() any, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		onState:    onState,
		log:        log,
	}
}

// Run owns the client set. It must run on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("bridge client registered", "client_id", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("bridge client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn("bridge client dropped, send blocked", "client_id", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes one typed message to every connected client.
func (h *Hub) Broadcast(msgType string, content any) {
	data, err := json.Marshal(Envelope{Type: msgType, Content: content})
	if err != nil {
		h.log.Warn("failed to marshal broadcast", "type", msgType, "error", err.Error())
		return
	}
	h.broadcast <- data
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("bridge read error", "client_id", c.ID, "error", err.Error())
			}
			break
		}

		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Hub.log.Debug("dropping malformed bridge message", "client_id", c.ID)
			continue
		}

		switch msg.Type {
		case "ping":
			c.send("pong", nil)
		case "state":
			if c.Hub.onState != nil {
				c.send("state", c.Hub.onState())
			}
		default:
			c.Hub.log.Debug("unknown bridge message type", "type", msg.Type)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) send(msgType string, content any) {
	data, err := json.Marshal(Envelope{Type: msgType, Content: content})
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// ServeWs upgrades one HTTP request into a hub client connection.
func ServeWs(hub *Hub, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      originChecker(allowedOrigins),
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "error", err.Error())
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			Conn: conn,
			Send: make(chan []byte, 256),
			Hub:  hub,
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
