package realtime

import "encoding/json"

// Événements client → serveur.
const (
	EventAuthenticate    = "authenticate"
	EventJoinCompetition = "join-competition"
	EventJoinOrganizer   = "join-organizer"
	EventJoinRoom        = "join-room"
	EventPing            = "ping"
)

// Événements serveur → client.
const (
	EventAuthenticated = "authenticated"
	EventNotification  = "notification"
	EventStatusUpdated = "status-updated"
	EventPong          = "pong"
)

// Envelope is the wire format for every socket message, in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type AuthenticatePayload struct {
	UserID int    `json:"userId"`
	Role   string `json:"role,omitempty"`
	Token  string `json:"token,omitempty"`
}

type AuthenticatedPayload struct {
	Success bool   `json:"success"`
	UserID  int    `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type JoinCompetitionPayload struct {
	CompetitionID int `json:"id"`
}

type JoinOrganizerPayload struct {
	OrganizerID int `json:"id"`
}

type JoinRoomPayload struct {
	Name string `json:"name"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}
