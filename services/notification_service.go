package services

import (
	"context"
	"errors"

	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/repositories"
)

// NotificationService couvre le côté lecture/consommation des notifications.
// La création passe par NotificationFanout.
type NotificationService struct {
	notificationRepo repositories.NotificationRepository
}

func NewNotificationService(notificationRepo repositories.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

func (s *NotificationService) ListByUser(ctx context.Context, userID int, onlyUnread bool, limit, offset int) ([]models.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, onlyUnread, limit, offset)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID int) (int, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int) error {
	err := s.notificationRepo.MarkRead(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}
