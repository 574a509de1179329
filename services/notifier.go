package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/realtime"
	"github.com/sportcomp/competition-system/repositories"
)

// Fan-out vers les participants : quelques écritures au plus, bornées pour ne
// pas saturer le pool de connexions.
const fanoutConcurrency = 4

// NotificationFanout crée les notifications déclenchées par une transition de
// statut et les pousse en direct aux connexions concernées. Toutes les erreurs
// sont journalisées puis avalées.
type NotificationFanout struct {
	notificationRepo  repositories.NotificationRepository
	participationRepo repositories.ParticipationRepository
	broadcaster       Broadcaster
	logger            *slog.Logger
}

func NewNotificationFanout(
	notificationRepo repositories.NotificationRepository,
	participationRepo repositories.ParticipationRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *NotificationFanout {
	return &NotificationFanout{
		notificationRepo:  notificationRepo,
		participationRepo: participationRepo,
		broadcaster:       broadcaster,
		logger:            logger,
	}
}

// NotifyStatusChange notifie toujours l'organisateur ; pour les passages à
// IN_PROGRESS ou COMPLETED, chaque participant approuvé est notifié aussi.
func (f *NotificationFanout) NotifyStatusChange(ctx context.Context, competition *models.Competition, oldStatus, newStatus models.CompetitionStatus) {
	title, message := StatusChangeMessage(newStatus, competition.Name)

	data, err := json.Marshal(models.NotificationData{
		CompetitionID:   competition.ID,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
		CompetitionName: competition.Name,
	})
	if err != nil {
		f.logger.Error("failed to marshal notification data",
			slog.Int("competition_id", competition.ID), slog.Any("error", err))
		data = nil
	}

	f.createAndPush(ctx, competition.OrganizerID, models.NotificationTypeStatusChange, title, message, data)

	if newStatus != models.StatusInProgress && newStatus != models.StatusCompleted {
		return
	}

	approved := models.ParticipationApproved
	participations, err := f.participationRepo.ListByCompetition(ctx, competition.ID, &approved)
	if err != nil {
		f.logger.Error("failed to list approved participations for fan-out",
			slog.Int("competition_id", competition.ID), slog.Any("error", err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutConcurrency)
	for _, participation := range participations {
		userID := participation.ParticipantID
		g.Go(func() error {
			f.createAndPush(gctx, userID, models.NotificationTypeStatusChange, title, message, data)
			return nil
		})
	}
	_ = g.Wait()
}

// NotifyParticipationUpdate informe un participant de l'issue de sa demande.
func (f *NotificationFanout) NotifyParticipationUpdate(ctx context.Context, competition *models.Competition, participation *models.Participation) {
	var title, message string
	switch participation.Status {
	case models.ParticipationApproved:
		title = "Participation approuvée"
		message = "Votre participation à la compétition « " + competition.Name + " » a été approuvée."
	case models.ParticipationRejected:
		title = "Participation refusée"
		message = "Votre participation à la compétition « " + competition.Name + " » a été refusée."
	default:
		return
	}

	data, err := json.Marshal(models.NotificationData{
		CompetitionID:   competition.ID,
		CompetitionName: competition.Name,
	})
	if err != nil {
		data = nil
	}
	f.createAndPush(ctx, participation.ParticipantID, models.NotificationTypeRegistration, title, message, data)
}

// createAndPush écrit la notification puis tente la livraison temps réel.
// Jamais d'erreur remontée : l'appelant a déjà fait l'écriture durable qui compte.
func (f *NotificationFanout) createAndPush(ctx context.Context, userID int, typ, title, message string, data json.RawMessage) {
	notification := &models.Notification{
		UserID:   userID,
		Type:     typ,
		Category: models.NotificationCategoryCompetition,
		Title:    title,
		Message:  message,
		Data:     data,
	}

	if err := f.notificationRepo.Create(ctx, notification); err != nil {
		f.logger.Error("failed to create notification",
			slog.Int("user_id", userID),
			slog.String("title", title),
			slog.Any("error", err))
	}

	if f.broadcaster != nil {
		f.broadcaster.SendToUser(userID, realtime.EventNotification, notification)
	}
}
