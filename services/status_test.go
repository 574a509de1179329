package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sportcomp/competition-system/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func baseCompetition(status models.CompetitionStatus) *models.Competition {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.Competition{
		ID:                    1,
		Name:                  "Open de Paris",
		OrganizerID:           10,
		Status:                status,
		RegistrationStartDate: base,
		RegistrationDeadline:  base.AddDate(0, 0, 7),
		StartDate:             timePtr(base.AddDate(0, 0, 14)),
		EndDate:               timePtr(base.AddDate(0, 0, 16)),
		MaxParticipants:       32,
	}
}

func TestDetermineStatus(t *testing.T) {
	c := baseCompetition(models.StatusOpen)
	regStart := c.RegistrationStartDate
	deadline := c.RegistrationDeadline
	start := *c.StartDate
	end := *c.EndDate

	tests := []struct {
		name     string
		status   models.CompetitionStatus
		now      time.Time
		expected models.CompetitionStatus
	}{
		{"draft never moves", models.StatusDraft, end.AddDate(0, 1, 0), models.StatusDraft},
		{"cancelled is terminal", models.StatusCancelled, start, models.StatusCancelled},
		{"completed is terminal", models.StatusCompleted, regStart, models.StatusCompleted},
		{"before registration start reports open", models.StatusOpen, regStart.Add(-time.Hour), models.StatusOpen},
		{"during registration window", models.StatusOpen, regStart.Add(time.Hour), models.StatusOpen},
		{"deadline itself is still open", models.StatusOpen, deadline, models.StatusOpen},
		{"after deadline before start", models.StatusOpen, deadline.Add(time.Minute), models.StatusClosed},
		{"start date reached", models.StatusClosed, start, models.StatusInProgress},
		{"between start and end", models.StatusClosed, start.Add(24 * time.Hour), models.StatusInProgress},
		{"end date itself still in progress", models.StatusInProgress, end, models.StatusInProgress},
		{"after end date", models.StatusInProgress, end.Add(time.Second), models.StatusCompleted},
		{"closed reopens if deadline moved forward", models.StatusClosed, regStart.Add(time.Hour), models.StatusOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCompetition(tt.status)
			assert.Equal(t, tt.expected, DetermineStatus(c, tt.now))
		})
	}
}

func TestDetermineStatusWithoutStartDate(t *testing.T) {
	c := baseCompetition(models.StatusOpen)
	c.StartDate = nil
	c.EndDate = nil

	// Without a start date the competition stays CLOSED after the deadline.
	got := DetermineStatus(c, c.RegistrationDeadline.AddDate(1, 0, 0))
	assert.Equal(t, models.StatusClosed, got)
}

func TestDetermineStatusWithoutEndDate(t *testing.T) {
	c := baseCompetition(models.StatusInProgress)
	c.EndDate = nil

	// Without an end date the competition runs indefinitely.
	got := DetermineStatus(c, c.StartDate.AddDate(1, 0, 0))
	assert.Equal(t, models.StatusInProgress, got)
}

func TestDetermineStatusWithoutRegistrationDates(t *testing.T) {
	c := baseCompetition(models.StatusOpen)
	c.RegistrationStartDate = time.Time{}
	c.RegistrationDeadline = time.Time{}

	// Incomplete date configuration: the current status is kept as is.
	assert.Equal(t, models.StatusOpen, DetermineStatus(c, time.Now()))
}

func TestDetermineStatusIsPure(t *testing.T) {
	c := baseCompetition(models.StatusOpen)
	snapshot := *c

	DetermineStatus(c, c.RegistrationDeadline.AddDate(0, 0, 1))
	assert.Equal(t, snapshot, *c, "DetermineStatus must not mutate its input")
}

func TestTransitionReason(t *testing.T) {
	assert.Equal(t,
		"Clôture automatique des inscriptions : date limite dépassée",
		TransitionReason(models.StatusOpen, models.StatusClosed))
	assert.Equal(t,
		defaultTransitionReason,
		TransitionReason(models.StatusCancelled, models.StatusOpen))
}

func TestStatusChangeMessage(t *testing.T) {
	title, message := StatusChangeMessage(models.StatusClosed, "Open de Paris")
	assert.Equal(t, "Inscriptions fermées", title)
	assert.Contains(t, message, "fermées")
	assert.Contains(t, message, "Open de Paris")

	title, message = StatusChangeMessage("UNKNOWN", "Open de Paris")
	assert.Equal(t, "Statut mis à jour", title)
	assert.True(t, strings.Contains(message, "Open de Paris"))
}
