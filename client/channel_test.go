package client

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportcomp/competition-system/realtime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newWsTestServer runs handler once per accepted connection.
func newWsTestServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeEnvelope(conn *websocket.Conn, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(realtime.Envelope{Event: event, Payload: data})
}

func readEvent(conn *websocket.Conn) (realtime.Envelope, error) {
	var env realtime.Envelope
	err := conn.ReadJSON(&env)
	return env, err
}

// drainUntilClose keeps the server side open until the peer disconnects.
func drainUntilClose(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testNotification(id int, title, message string) Notification {
	return Notification{
		ID:        id,
		UserID:    7,
		Type:      "COMPETITION_STATUS_CHANGE",
		Category:  "competition",
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

func TestChannelAuthenticatesAndDeduplicatesNotifications(t *testing.T) {
	srv, url := newWsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()

		env, err := readEvent(conn)
		if err != nil || env.Event != realtime.EventAuthenticate {
			return
		}
		var auth realtime.AuthenticatePayload
		if err := json.Unmarshal(env.Payload, &auth); err != nil || auth.UserID != 7 {
			return
		}
		writeEnvelope(conn, realtime.EventAuthenticated, realtime.AuthenticatedPayload{Success: true, UserID: auth.UserID})

		// Two identical notifications back to back, then a distinct one.
		closed := testNotification(1, "Inscriptions fermées", "Les inscriptions pour la compétition « Open de Paris » sont désormais fermées.")
		replay := testNotification(2, closed.Title, closed.Message)
		started := testNotification(3, "Compétition commencée", "La compétition « Open de Paris » vient de commencer.")
		writeEnvelope(conn, realtime.EventNotification, closed)
		writeEnvelope(conn, realtime.EventNotification, replay)
		writeEnvelope(conn, realtime.EventNotification, started)

		drainUntilClose(conn)
	})
	defer srv.Close()

	received := make(chan Notification, 8)
	ch := New(Options{
		URL:             url,
		UserID:          7,
		Role:            "PARTICIPANT",
		DedupWindow:     time.Second,
		NotificationTTL: time.Minute,
		Logger:          discardLogger(),
	})
	ch.On(realtime.EventNotification, func(payload json.RawMessage) {
		var n Notification
		if err := json.Unmarshal(payload, &n); err == nil {
			received <- n
		}
	})
	ch.Connect()
	defer ch.Close()

	var titles []string
	for len(titles) < 2 {
		select {
		case n := <-received:
			titles = append(titles, n.Title)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %d notifications", len(titles))
		}
	}
	assert.Equal(t, []string{"Inscriptions fermées", "Compétition commencée"}, titles)

	select {
	case n := <-received:
		t.Fatalf("duplicate notification dispatched: %q", n.Title)
	case <-time.After(200 * time.Millisecond):
	}

	assert.Eventually(t, func() bool { return ch.State() == StateAuthenticated }, time.Second, 10*time.Millisecond)
	assert.Len(t, ch.Notifications(), 2)
}

func TestChannelNotificationsExpire(t *testing.T) {
	srv, url := newWsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		writeEnvelope(conn, realtime.EventNotification, testNotification(1, "Compétition terminée", "La compétition « Open de Paris » est maintenant terminée."))
		drainUntilClose(conn)
	})
	defer srv.Close()

	received := make(chan struct{}, 1)
	ch := New(Options{
		URL:             url,
		NotificationTTL: 50 * time.Millisecond,
		Logger:          discardLogger(),
	})
	ch.On(realtime.EventNotification, func(json.RawMessage) { received <- struct{}{} })
	ch.Connect()
	defer ch.Close()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}
	require.Len(t, ch.Notifications(), 1)

	assert.Eventually(t, func() bool { return len(ch.Notifications()) == 0 },
		time.Second, 20*time.Millisecond, "expired notifications must be dismissed")
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	srv, url := newWsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if connections.Add(1) == 1 {
			return // drop the first connection immediately
		}
		env, err := readEvent(conn)
		if err != nil || env.Event != realtime.EventAuthenticate {
			return
		}
		writeEnvelope(conn, realtime.EventAuthenticated, realtime.AuthenticatedPayload{Success: true, UserID: 7})
		drainUntilClose(conn)
	})
	defer srv.Close()

	ch := New(Options{
		URL:               url,
		UserID:            7,
		ReconnectInterval: 20 * time.Millisecond,
		Logger:            discardLogger(),
	})
	ch.Connect()
	defer ch.Close()

	assert.Eventually(t, func() bool { return ch.State() == StateAuthenticated },
		2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
	assert.NoError(t, ch.Err())
}

func TestChannelGivesUpAfterBoundedRetries(t *testing.T) {
	srv, url := newWsTestServer(t, func(conn *websocket.Conn) { conn.Close() })
	srv.Close() // every dial now fails

	gaveUp := make(chan struct{}, 1)
	ch := New(Options{
		URL:                  url,
		MaxReconnectAttempts: 2,
		ReconnectInterval:    10 * time.Millisecond,
		Logger:               discardLogger(),
	})
	ch.On(EventConnectionError, func(json.RawMessage) { gaveUp <- struct{}{} })
	ch.Connect()
	defer ch.Close()

	select {
	case <-gaveUp:
	case <-time.After(2 * time.Second):
		t.Fatal("channel never reported the exhausted reconnection budget")
	}
	assert.Equal(t, StateDisconnected, ch.State())
	assert.True(t, errors.Is(ch.Err(), ErrReconnectExhausted))
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	srv, url := newWsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		drainUntilClose(conn)
	})
	defer srv.Close()

	ch := New(Options{URL: url, Logger: discardLogger()})
	ch.Connect()

	assert.Eventually(t, func() bool { return ch.State() == StateConnected },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestChannelStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
}
