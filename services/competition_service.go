package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/realtime"
	"github.com/sportcomp/competition-system/repositories"
)

type CreateCompetitionInput struct {
	Name                  string     `json:"name"`
	Description           *string    `json:"description"`
	RegistrationStartDate time.Time  `json:"registration_start_date"`
	RegistrationDeadline  time.Time  `json:"registration_deadline"`
	StartDate             *time.Time `json:"start_date"`
	EndDate               *time.Time `json:"end_date"`
	MaxParticipants       int        `json:"max_participants"`
}

type CompetitionService struct {
	competitionRepo repositories.CompetitionRepository
	notifier        *NotificationFanout
	broadcaster     Broadcaster
	logger          *slog.Logger
}

func NewCompetitionService(
	competitionRepo repositories.CompetitionRepository,
	notifier *NotificationFanout,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *CompetitionService {
	return &CompetitionService{
		competitionRepo: competitionRepo,
		notifier:        notifier,
		broadcaster:     broadcaster,
		logger:          logger,
	}
}

// Create enregistre une nouvelle compétition en DRAFT, au nom de l'organisateur.
func (s *CompetitionService) Create(ctx context.Context, organizerID int, input CreateCompetitionInput) (*models.Competition, error) {
	if input.Name == "" {
		return nil, ErrCompetitionNameRequired
	}
	if input.MaxParticipants <= 0 {
		return nil, ErrCompetitionInvalidCapacity
	}
	if err := validateCompetitionDates(input.RegistrationStartDate, input.RegistrationDeadline, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	competition := &models.Competition{
		Name:                  input.Name,
		Description:           input.Description,
		OrganizerID:           organizerID,
		RegistrationStartDate: input.RegistrationStartDate,
		RegistrationDeadline:  input.RegistrationDeadline,
		StartDate:             input.StartDate,
		EndDate:               input.EndDate,
		Status:                models.StatusDraft,
		MaxParticipants:       input.MaxParticipants,
	}

	if err := s.competitionRepo.Create(ctx, competition); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNameConflict) {
			return nil, ErrCompetitionNameConflict
		}
		return nil, fmt.Errorf("failed to create competition: %w", err)
	}
	return competition, nil
}

func (s *CompetitionService) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return competition, nil
}

func (s *CompetitionService) List(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	return s.competitionRepo.List(ctx, filter)
}

// Publish fait passer une compétition de DRAFT à OPEN. C'est la seule manière
// de sortir de DRAFT : le moteur automatique n'y touche jamais.
func (s *CompetitionService) Publish(ctx context.Context, id, organizerID int) (*models.Competition, error) {
	return s.transition(ctx, id, organizerID, models.StatusOpen, func(current models.CompetitionStatus) bool {
		return current == models.StatusDraft
	})
}

// Cancel annule une compétition non terminale.
func (s *CompetitionService) Cancel(ctx context.Context, id, organizerID int) (*models.Competition, error) {
	return s.transition(ctx, id, organizerID, models.StatusCancelled, func(current models.CompetitionStatus) bool {
		return !current.IsTerminal()
	})
}

func (s *CompetitionService) transition(
	ctx context.Context,
	id, organizerID int,
	newStatus models.CompetitionStatus,
	allowed func(models.CompetitionStatus) bool,
) (*models.Competition, error) {
	competition, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if competition.OrganizerID != organizerID {
		return nil, ErrForbiddenOperation
	}
	if !allowed(competition.Status) {
		return nil, ErrCompetitionInvalidStatusTransition
	}

	oldStatus := competition.Status
	if err := s.competitionRepo.UpdateStatus(ctx, nil, id, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update competition status: %w", err)
	}
	competition.Status = newStatus
	competition.UpdatedAt = time.Now()

	s.logger.Info("competition status changed manually",
		slog.Int("competition_id", id),
		slog.String("old_status", string(oldStatus)),
		slog.String("new_status", string(newStatus)))

	// Same best-effort tail as the automatic engine: durable write first,
	// then notification and live broadcast.
	if s.notifier != nil {
		s.notifier.NotifyStatusChange(ctx, competition, oldStatus, newStatus)
	}
	if s.broadcaster != nil {
		s.broadcaster.SendToCompetition(id, realtime.EventStatusUpdated, StatusUpdateResult{
			CompetitionID:   id,
			OldStatus:       oldStatus,
			NewStatus:       newStatus,
			Reason:          TransitionReason(oldStatus, newStatus),
			Timestamp:       competition.UpdatedAt,
			CompetitionName: competition.Name,
		})
	}

	return competition, nil
}

func validateCompetitionDates(regStart, regDeadline time.Time, start, end *time.Time) error {
	if regStart.IsZero() || regDeadline.IsZero() {
		return ErrCompetitionDatesRequired
	}
	if !regStart.Before(regDeadline) {
		return ErrCompetitionInvalidRegWindow
	}
	if start != nil && start.Before(regDeadline) {
		return ErrCompetitionInvalidStartDate
	}
	if start != nil && end != nil && !start.Before(*end) {
		return ErrCompetitionInvalidDateRange
	}
	return nil
}
