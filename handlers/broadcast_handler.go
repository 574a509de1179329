package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sportcomp/competition-system/realtime"
)

// BroadcastHandler expose le pont HTTP interne vers le canal temps réel, pour
// les processus qui ne tiennent pas le hub en mémoire (jobs, back-office).
type BroadcastHandler struct {
	hub  *realtime.Hub
	port int
}

func NewBroadcastHandler(hub *realtime.Hub, port int) *BroadcastHandler {
	return &BroadcastHandler{hub: hub, port: port}
}

type broadcastRequest struct {
	Event  string          `json:"event"`
	UserID int             `json:"userId"`
	Data   json.RawMessage `json:"data"`
}

// Broadcast pousse un événement vers toutes les connexions d'un utilisateur.
func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if req.Event == "" || req.UserID == 0 {
		badRequestResponse(w, r, errors.New("event and userId are required"))
		return
	}

	delivered := h.hub.SendToUser(req.UserID, req.Event, req.Data)

	response := jsonResponse{
		"success": delivered,
		"room":    string(realtime.UserRoom(req.UserID)),
		"event":   req.Event,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Status renvoie l'état du canal temps réel.
func (h *BroadcastHandler) Status(w http.ResponseWriter, r *http.Request) {
	response := jsonResponse{
		"status":           "ok",
		"connectedClients": h.hub.ClientCount(),
		"port":             h.port,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
