package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/repositories"
)

type ParticipationService struct {
	participationRepo repositories.ParticipationRepository
	competitionRepo   repositories.CompetitionRepository
	userRepo          repositories.UserRepository
	notifier          *NotificationFanout
	logger            *slog.Logger
}

func NewParticipationService(
	participationRepo repositories.ParticipationRepository,
	competitionRepo repositories.CompetitionRepository,
	userRepo repositories.UserRepository,
	notifier *NotificationFanout,
	logger *slog.Logger,
) *ParticipationService {
	return &ParticipationService{
		participationRepo: participationRepo,
		competitionRepo:   competitionRepo,
		userRepo:          userRepo,
		notifier:          notifier,
		logger:            logger,
	}
}

// Register crée une demande de participation PENDING pour l'utilisateur.
func (s *ParticipationService) Register(ctx context.Context, competitionID, userID int) (*models.Participation, error) {
	if s.userRepo != nil {
		if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}

	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}

	if competition.Status != models.StatusOpen {
		return nil, ErrRegistrationNotOpen
	}

	approved := models.ParticipationApproved
	approvedList, err := s.participationRepo.ListByCompetition(ctx, competitionID, &approved)
	if err != nil {
		return nil, fmt.Errorf("failed to check competition capacity: %w", err)
	}
	if competition.MaxParticipants > 0 && len(approvedList) >= competition.MaxParticipants {
		return nil, ErrCompetitionFull
	}

	participation := &models.Participation{
		CompetitionID: competitionID,
		ParticipantID: userID,
		Status:        models.ParticipationPending,
	}
	if err := s.participationRepo.Create(ctx, participation); err != nil {
		if errors.Is(err, repositories.ErrParticipationConflict) {
			return nil, ErrRegistrationConflict
		}
		return nil, fmt.Errorf("failed to register participation: %w", err)
	}

	return participation, nil
}

// Review approuve ou refuse une demande ; réservé à l'organisateur de la compétition.
func (s *ParticipationService) Review(ctx context.Context, participationID, organizerID int, status models.ParticipationStatus) (*models.Participation, error) {
	if status != models.ParticipationApproved && status != models.ParticipationRejected {
		return nil, ErrParticipationInvalidStatus
	}

	participation, err := s.participationRepo.FindByID(ctx, participationID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipationNotFound) {
			return nil, ErrParticipationNotFound
		}
		return nil, err
	}

	competition, err := s.competitionRepo.GetByID(ctx, participation.CompetitionID)
	if err != nil {
		return nil, err
	}
	if competition.OrganizerID != organizerID {
		return nil, ErrForbiddenOperation
	}

	if err := s.participationRepo.UpdateStatus(ctx, participationID, status); err != nil {
		return nil, fmt.Errorf("failed to update participation status: %w", err)
	}
	participation.Status = status

	if s.notifier != nil {
		s.notifier.NotifyParticipationUpdate(ctx, competition, participation)
	}

	return participation, nil
}

func (s *ParticipationService) ListByCompetition(ctx context.Context, competitionID int, statusFilter *models.ParticipationStatus) ([]*models.Participation, error) {
	return s.participationRepo.ListByCompetition(ctx, competitionID, statusFilter)
}
