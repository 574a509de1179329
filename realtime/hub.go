package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type eventHandler func(*Client, json.RawMessage)

// Hub tient en mémoire l'ensemble des connexions et leur appartenance aux
// salons. Tout l'état est local au processus et disparaît avec lui.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	clients  map[*Client]bool
	rooms    map[Room]map[*Client]bool
	handlers map[string]eventHandler

	jwtSecret []byte
	logger    *slog.Logger
	mu        sync.RWMutex
}

func NewHub(jwtSecret string, logger *slog.Logger) *Hub {
	h := &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[Room]map[*Client]bool),
		handlers:   make(map[string]eventHandler),
		jwtSecret:  []byte(jwtSecret),
		logger:     logger,
	}
	h.handlers[EventAuthenticate] = h.handleAuthenticate
	h.handlers[EventJoinCompetition] = h.handleJoinCompetition
	h.handlers[EventJoinOrganizer] = h.handleJoinOrganizer
	h.handlers[EventJoinRoom] = h.handleJoinRoom
	h.handlers[EventPing] = h.handlePing
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("socket client connected",
				slog.String("connection_id", client.ID),
				slog.Int("total_clients", h.ClientCount()))

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				for room := range client.rooms {
					h.leaveRoomLocked(client, room)
				}
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Debug("socket client disconnected",
				slog.String("connection_id", client.ID),
				slog.Int("total_clients", h.ClientCount()))
		}
	}
}

// ClientCount returns the number of live connections, authenticated or not.
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// dispatch routes one incoming envelope to its event handler.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn("invalid socket message", slog.String("connection_id", c.ID), slog.Any("error", err))
		return
	}

	handler, ok := h.handlers[env.Event]
	if !ok {
		h.logger.Warn("unknown socket event", slog.String("event", env.Event), slog.String("connection_id", c.ID))
		return
	}
	handler(c, env.Payload)
}

func (h *Hub) handleAuthenticate(c *Client, payload json.RawMessage) {
	var p AuthenticatePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			c.enqueue(EventAuthenticated, AuthenticatedPayload{Success: false, Error: "invalid authenticate payload"})
			return
		}
	}

	// A JWT takes precedence over the self-declared identity.
	if p.Token != "" {
		userID, role, err := h.parseToken(p.Token)
		if err != nil {
			h.logger.Warn("socket token rejected", slog.String("connection_id", c.ID), slog.Any("error", err))
			c.enqueue(EventAuthenticated, AuthenticatedPayload{Success: false, Error: "invalid token"})
			return
		}
		p.UserID = userID
		p.Role = role
	}

	if p.UserID == 0 {
		c.enqueue(EventAuthenticated, AuthenticatedPayload{Success: false, Error: "userId is required"})
		return
	}

	c.userID = p.UserID
	c.role = p.Role

	h.joinRoom(c, UserRoom(p.UserID))
	if p.Role == "ORGANIZER" {
		h.joinRoom(c, RoomOrganizers)
		h.joinRoom(c, OrganizerRoom(p.UserID))
	}

	h.logger.Info("socket client authenticated",
		slog.String("connection_id", c.ID),
		slog.Int("user_id", p.UserID),
		slog.String("role", p.Role))

	c.enqueue(EventAuthenticated, AuthenticatedPayload{Success: true, UserID: p.UserID})
}

func (h *Hub) parseToken(tokenString string) (int, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return 0, "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, "", fmt.Errorf("token has no user_id claim")
	}
	role, _ := claims["role"].(string)
	return int(userID), role, nil
}

func (h *Hub) handleJoinCompetition(c *Client, payload json.RawMessage) {
	var p JoinCompetitionPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.CompetitionID == 0 {
		return // missing argument: no-op
	}
	h.joinRoom(c, CompetitionRoom(p.CompetitionID))
}

func (h *Hub) handleJoinOrganizer(c *Client, payload json.RawMessage) {
	var p JoinOrganizerPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.OrganizerID == 0 {
		return
	}
	h.joinRoom(c, OrganizerRoom(p.OrganizerID))
}

func (h *Hub) handleJoinRoom(c *Client, payload json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Name == "" {
		return
	}
	h.joinRoom(c, Room(p.Name))
}

func (h *Hub) handlePing(c *Client, _ json.RawMessage) {
	c.enqueue(EventPong, PongPayload{Timestamp: time.Now().UnixMilli()})
}

// joinRoom est idempotent : rejoindre un salon déjà rejoint est sans effet.
func (h *Hub) joinRoom(c *Client, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
}

// leaveRoomLocked expects h.mu to be held.
func (h *Hub) leaveRoomLocked(c *Client, room Room) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// SendToUser pushes an event to every connection of the given user. The
// returned flag reports delivery to at least one connection; a nil hub or an
// empty room is a no-op, never an error.
func (h *Hub) SendToUser(userID int, event string, payload interface{}) bool {
	if h == nil {
		return false
	}
	return h.broadcastToRoom(UserRoom(userID), event, payload)
}

// SendToOrganizers pushes an event to every authenticated organizer.
func (h *Hub) SendToOrganizers(event string, payload interface{}) bool {
	if h == nil {
		return false
	}
	return h.broadcastToRoom(RoomOrganizers, event, payload)
}

// SendToCompetition pushes an event to every connection watching a competition.
func (h *Hub) SendToCompetition(competitionID int, event string, payload interface{}) bool {
	if h == nil {
		return false
	}
	return h.broadcastToRoom(CompetitionRoom(competitionID), event, payload)
}

func (h *Hub) broadcastToRoom(room Room, event string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", slog.String("room", string(room)), slog.Any("error", err))
		return false
	}
	message, err := json.Marshal(Envelope{Event: event, Payload: data})
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope", slog.String("room", string(room)), slog.Any("error", err))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok || len(members) == 0 {
		return false
	}

	delivered := false
	for client := range members {
		if client.trySend(message) {
			delivered = true
		}
	}
	return delivered
}
