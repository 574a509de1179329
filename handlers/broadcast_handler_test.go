package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportcomp/competition-system/realtime"
)

func newBroadcastFixture(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := realtime.NewHub("test-secret", logger)
	go hub.Run()

	webSocketHandler := NewWebSocketHandler(hub, logger)
	broadcastHandler := NewBroadcastHandler(hub, 8080)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", webSocketHandler.ServeWs)
	mux.HandleFunc("/api/socket/broadcast", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			broadcastHandler.Broadcast(w, r)
			return
		}
		broadcastHandler.Status(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hub
}

func postBroadcast(t *testing.T, srv *httptest.Server, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/socket/broadcast", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

// dialAuthenticated opens a socket connection and authenticates it as userID.
func dialAuthenticated(t *testing.T, srv *httptest.Server, userID int) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	payload, err := json.Marshal(realtime.AuthenticatePayload{UserID: userID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(realtime.Envelope{Event: realtime.EventAuthenticate, Payload: payload}))

	var env realtime.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, realtime.EventAuthenticated, env.Event)
	var auth realtime.AuthenticatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &auth))
	require.True(t, auth.Success)
	return conn
}

func TestBroadcastRequiresEventAndUser(t *testing.T) {
	srv, _ := newBroadcastFixture(t)

	status, _ := postBroadcast(t, srv, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postBroadcast(t, srv, `{"event":"notification"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postBroadcast(t, srv, `{"userId":7}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBroadcastDeliversToConnectedUser(t *testing.T) {
	srv, _ := newBroadcastFixture(t)
	conn := dialAuthenticated(t, srv, 7)

	status, body := postBroadcast(t, srv, `{"event":"notification","userId":7,"data":{"title":"Inscriptions fermées"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "user-7", body["room"])
	assert.Equal(t, "notification", body["event"])

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env realtime.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, realtime.EventNotification, env.Event)
	assert.Contains(t, string(env.Payload), "Inscriptions fermées")
}

func TestBroadcastReportsUndeliveredForAbsentUser(t *testing.T) {
	srv, _ := newBroadcastFixture(t)

	status, body := postBroadcast(t, srv, `{"event":"notification","userId":99}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "user-99", body["room"])
	assert.Equal(t, "notification", body["event"])
}

func TestBroadcastStatusReportsConnectedClients(t *testing.T) {
	srv, hub := newBroadcastFixture(t)
	dialAuthenticated(t, srv, 7)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/socket/broadcast")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["connectedClients"])
	assert.Equal(t, float64(8080), body["port"])
}
