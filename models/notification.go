package models

import (
	"encoding/json"
	"time"
)

// Notification types and categories used by the status pipeline.
const (
	NotificationTypeStatusChange = "COMPETITION_STATUS_CHANGE"
	NotificationTypeRegistration = "PARTICIPATION_UPDATE"

	NotificationCategoryCompetition = "competition"
)

// Notification est créée par le fan-out et lue/marquée côté UI.
type Notification struct {
	ID        int             `json:"id" db:"id"`
	UserID    int             `json:"user_id" db:"user_id"`
	Type      string          `json:"type" db:"type"`
	Category  string          `json:"category" db:"category"`
	Title     string          `json:"title" db:"title"`
	Message   string          `json:"message" db:"message"`
	Data      json.RawMessage `json:"data,omitempty" db:"data"`
	IsRead    bool            `json:"is_read" db:"is_read"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NotificationData is the opaque payload carried by status-change
// notifications so the client can route to the competition page.
type NotificationData struct {
	CompetitionID   int               `json:"competitionId"`
	OldStatus       CompetitionStatus `json:"oldStatus"`
	NewStatus       CompetitionStatus `json:"newStatus"`
	CompetitionName string            `json:"competitionName"`
}
