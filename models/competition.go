package models

import "time"

// CompetitionStatus représente les statuts d'une compétition, correspondant à l'ENUM en base.
type CompetitionStatus string

const (
	StatusDraft      CompetitionStatus = "DRAFT"
	StatusOpen       CompetitionStatus = "OPEN"
	StatusClosed     CompetitionStatus = "CLOSED"
	StatusInProgress CompetitionStatus = "IN_PROGRESS"
	StatusCompleted  CompetitionStatus = "COMPLETED"
	StatusCancelled  CompetitionStatus = "CANCELLED"
)

// IsTerminal reports whether the status is never auto-advanced again.
func (s CompetitionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Competition représente une compétition.
type Competition struct {
	ID                    int               `json:"id" db:"id"`
	Name                  string            `json:"name" db:"name"`
	Description           *string           `json:"description,omitempty" db:"description"`
	OrganizerID           int               `json:"organizer_id" db:"organizer_id"`
	RegistrationStartDate time.Time         `json:"registration_start_date" db:"registration_start_date"`
	RegistrationDeadline  time.Time         `json:"registration_deadline" db:"registration_deadline"`
	StartDate             *time.Time        `json:"start_date,omitempty" db:"start_date"`
	EndDate               *time.Time        `json:"end_date,omitempty" db:"end_date"`
	Status                CompetitionStatus `json:"status" db:"status"`
	MaxParticipants       int               `json:"max_participants" db:"max_participants"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`

	// Optional related entities (populated on demand, not mapped directly).
	Organizer      *User           `json:"organizer,omitempty" db:"-"`
	Participations []Participation `json:"participations,omitempty" db:"-"`
}
