package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client est une connexion WebSocket vivante côté serveur. L'identité
// (userID, role) reste vide tant que le client ne s'est pas authentifié.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID int
	role   string
	rooms  map[Room]bool

	mu     sync.Mutex
	closed bool
}

// HandleConnection registers an upgraded connection with the hub and starts
// its pumps. It returns immediately; the pumps own the connection lifetime.
func (h *Hub) HandleConnection(conn *websocket.Conn) *Client {
	client := &Client{
		ID:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		rooms: make(map[Room]bool),
	}
	h.Register <- client

	go client.writePump()
	go client.readPump()

	return client
}

// enqueue marshals an envelope and queues it for delivery, dropping the
// message if the client's buffer is full.
func (c *Client) enqueue(event string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		c.hub.logger.Error("failed to marshal event payload", slog.String("event", event), slog.Any("error", err))
		return false
	}
	message, err := json.Marshal(Envelope{Event: event, Payload: data})
	if err != nil {
		return false
	}
	return c.trySend(message)
}

func (c *Client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		// Slow consumer: drop rather than block the broadcaster.
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("socket read error", slog.String("connection_id", c.ID), slog.Any("error", err))
			}
			break
		}
		c.hub.dispatch(c, message)
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
