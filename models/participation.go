package models

import "time"

// ParticipationStatus représente l'état d'une demande de participation.
type ParticipationStatus string

const (
	ParticipationPending  ParticipationStatus = "PENDING"
	ParticipationApproved ParticipationStatus = "APPROVED"
	ParticipationRejected ParticipationStatus = "REJECTED"
)

type Participation struct {
	ID            int                 `json:"id" db:"id"`
	CompetitionID int                 `json:"competition_id" db:"competition_id"`
	ParticipantID int                 `json:"participant_id" db:"participant_id"`
	Status        ParticipationStatus `json:"status" db:"status"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`

	Participant *User `json:"participant,omitempty" db:"-"`
}
