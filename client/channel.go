// Package client fournit le canal temps réel côté consommateur : connexion,
// authentification, reconnexion bornée, keepalive et dé-duplication des
// notifications. Le transport est découplé de la présentation : les événements
// entrants sont re-distribués à des handlers enregistrés, le canal ne connaît
// aucun de ses consommateurs.
package client

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sportcomp/competition-system/realtime"
)

// ErrReconnectExhausted est exposée une fois les tentatives de reconnexion
// épuisées ; l'appelant doit la présenter comme une erreur de connexion durable.
var ErrReconnectExhausted = errors.New("connection lost: reconnection attempts exhausted")

// EventConnectionError est émis localement (jamais par le serveur) quand la
// reconnexion est abandonnée.
const EventConnectionError = "connection-error"

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Handler reçoit le payload brut d'un événement entrant.
type Handler func(payload json.RawMessage)

// Notification est la forme fil des notifications poussées par le serveur.
type Notification struct {
	ID        int             `json:"id"`
	UserID    int             `json:"user_id"`
	Type      string          `json:"type"`
	Category  string          `json:"category"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`

	expiresAt time.Time
}

type Options struct {
	URL    string
	UserID int
	Role   string
	Token  string

	// Zero values fall back to the defaults below.
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	PingInterval         time.Duration
	DedupWindow          time.Duration
	NotificationTTL      time.Duration

	Logger *slog.Logger
}

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectInterval    = 3 * time.Second
	defaultPingInterval         = 25 * time.Second
	defaultDedupWindow          = 5 * time.Second
	defaultNotificationTTL      = 8 * time.Second
)

// Channel est le canal temps réel. Créer avec New, démarrer avec Connect,
// libérer avec Close — Close relâche tous les timers et goroutines.
type Channel struct {
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	state    State
	lastErr  error
	handlers map[string][]Handler
	recent   map[string]time.Time
	inbox    []Notification
	stopPing chan struct{}
	done     chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New(opts Options) *Channel {
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if opts.ReconnectInterval == 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.DedupWindow == 0 {
		opts.DedupWindow = defaultDedupWindow
	}
	if opts.NotificationTTL == 0 {
		opts.NotificationTTL = defaultNotificationTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		opts:     opts,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		state:    StateDisconnected,
		handlers: make(map[string][]Handler),
		recent:   make(map[string]time.Time),
		done:     make(chan struct{}),
	}
}

// On enregistre un handler pour un événement entrant ("notification",
// "status-updated", ...). Plusieurs handlers indépendants peuvent coexister.
func (c *Channel) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Connect démarre la boucle de connexion en arrière-plan. La première
// connexion comme les suivantes bénéficient de la reconnexion bornée.
func (c *Channel) Connect() {
	c.wg.Add(1)
	go c.run()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the persistent connection error, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Notifications returns the currently displayed (non-expired) notifications.
func (c *Channel) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	kept := c.inbox[:0]
	for _, n := range c.inbox {
		if n.expiresAt.After(now) {
			kept = append(kept, n)
		}
	}
	c.inbox = kept

	out := make([]Notification, len(c.inbox))
	copy(out, c.inbox)
	return out
}

// Close arrête la boucle, ferme la connexion et libère timers et goroutines.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *Channel) run() {
	defer c.wg.Done()

	attempts := 0
	for {
		if c.isClosed() {
			return
		}

		c.setState(StateConnecting)
		conn, _, err := c.dialer.Dial(c.opts.URL, nil)
		if err != nil {
			attempts++
			if !c.scheduleRetry(attempts, err) {
				return
			}
			continue
		}
		attempts = 0

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.state = StateConnected
		c.lastErr = nil
		c.mu.Unlock()

		c.authenticate()
		err = c.readLoop(conn)
		c.teardownConnection(conn)
		if c.isClosed() {
			return
		}

		attempts++
		if !c.scheduleRetry(attempts, err) {
			return
		}
	}
}

// scheduleRetry waits one reconnect interval; it reports false once the
// attempt budget is exhausted, surfacing a persistent connection error.
func (c *Channel) scheduleRetry(attempts int, cause error) bool {
	if attempts > c.opts.MaxReconnectAttempts {
		c.logger.Error("realtime channel gave up reconnecting",
			slog.Int("attempts", attempts-1), slog.Any("error", cause))
		c.mu.Lock()
		c.state = StateDisconnected
		c.lastErr = ErrReconnectExhausted
		c.mu.Unlock()
		c.dispatch(EventConnectionError, nil)
		return false
	}

	c.logger.Warn("realtime channel disconnected, retrying",
		slog.Int("attempt", attempts),
		slog.Int("max_attempts", c.opts.MaxReconnectAttempts),
		slog.Any("error", cause))
	c.setState(StateReconnecting)

	select {
	case <-time.After(c.opts.ReconnectInterval):
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) authenticate() {
	if c.opts.UserID == 0 && c.opts.Token == "" {
		return // no identity available yet; stay connected, unauthenticated
	}
	c.setState(StateAuthenticating)
	c.send(realtime.EventAuthenticate, realtime.AuthenticatePayload{
		UserID: c.opts.UserID,
		Role:   c.opts.Role,
		Token:  c.opts.Token,
	})
}

// JoinCompetition subscribes this connection to a competition's live updates.
func (c *Channel) JoinCompetition(competitionID int) {
	c.send(realtime.EventJoinCompetition, realtime.JoinCompetitionPayload{CompetitionID: competitionID})
}

func (c *Channel) JoinRoom(name string) {
	c.send(realtime.EventJoinRoom, realtime.JoinRoomPayload{Name: name})
}

func (c *Channel) send(event string, payload interface{}) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	message, err := json.Marshal(realtime.Envelope{Event: event, Payload: data})
	if err != nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, message) == nil
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env realtime.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("invalid message from realtime server", slog.Any("error", err))
			continue
		}
		c.handleEvent(env)
	}
}

func (c *Channel) handleEvent(env realtime.Envelope) {
	switch env.Event {
	case realtime.EventAuthenticated:
		var p realtime.AuthenticatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if p.Success {
			c.setState(StateAuthenticated)
			c.startKeepalive()
		} else {
			c.logger.Warn("realtime authentication rejected", slog.String("error", p.Error))
			c.setState(StateConnected)
		}
	case realtime.EventNotification:
		var n Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			return
		}
		if c.acceptNotification(&n) {
			c.dispatch(realtime.EventNotification, env.Payload)
		}
	case realtime.EventPong:
		// keepalive acknowledged; nothing to update
	default:
		c.dispatch(env.Event, env.Payload)
	}
}

// acceptNotification applies the de-duplication window and the auto-dismiss
// TTL. Reconnection replay can double-deliver; an identical title+message
// seen within the window is dropped.
func (c *Channel) acceptNotification(n *Notification) bool {
	key := n.Title + "\x00" + n.Message
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.recent[key]; ok && now.Sub(last) < c.opts.DedupWindow {
		return false
	}
	c.recent[key] = now
	for k, at := range c.recent {
		if now.Sub(at) >= c.opts.DedupWindow {
			delete(c.recent, k)
		}
	}

	n.expiresAt = now.Add(c.opts.NotificationTTL)
	c.inbox = append(c.inbox, *n)
	return true
}

func (c *Channel) startKeepalive() {
	c.mu.Lock()
	if c.stopPing != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stopPing = stop
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.send(realtime.EventPing, struct{}{})
			case <-stop:
				return
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Channel) teardownConnection(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	c.mu.Unlock()
}

func (c *Channel) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers[event]))
	copy(handlers, c.handlers[event])
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
