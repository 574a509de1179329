package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/realtime"
	"github.com/sportcomp/competition-system/repositories"
)

// StatusUpdateResult décrit une transition effectuée pendant un cycle. Produit
// en mémoire pour le fan-out et la diffusion temps réel, jamais persisté.
type StatusUpdateResult struct {
	CompetitionID   int                      `json:"competitionId"`
	OldStatus       models.CompetitionStatus `json:"oldStatus"`
	NewStatus       models.CompetitionStatus `json:"newStatus"`
	Reason          string                   `json:"reason"`
	Timestamp       time.Time                `json:"timestamp"`
	CompetitionName string                   `json:"competitionName"`
}

type StatusUpdateStats struct {
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

type StatusUpdateReport struct {
	Results []StatusUpdateResult `json:"results"`
	Stats   StatusUpdateStats    `json:"stats"`
}

// StatusNotifier reçoit chaque transition persistée. Les implémentations ne
// retournent jamais d'erreur : un échec de notification ne doit pas faire
// échouer la mise à jour de statut qui l'a déclenchée.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, competition *models.Competition, oldStatus, newStatus models.CompetitionStatus)
}

// Broadcaster est la surface de diffusion temps réel consommée par les
// services. *realtime.Hub l'implémente ; un hub nil est silencieusement ignoré.
type Broadcaster interface {
	SendToUser(userID int, event string, payload interface{}) bool
	SendToOrganizers(event string, payload interface{}) bool
	SendToCompetition(competitionID int, event string, payload interface{}) bool
}

// StatusUpdateEngine parcourt les compétitions non terminales, applique
// DetermineStatus et persiste les écarts, compétition par compétition.
type StatusUpdateEngine struct {
	competitionRepo repositories.CompetitionRepository
	notifier        StatusNotifier
	broadcaster     Broadcaster
	logger          *slog.Logger
}

func NewStatusUpdateEngine(
	competitionRepo repositories.CompetitionRepository,
	notifier StatusNotifier,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *StatusUpdateEngine {
	return &StatusUpdateEngine{
		competitionRepo: competitionRepo,
		notifier:        notifier,
		broadcaster:     broadcaster,
		logger:          logger,
	}
}

// Run exécute un cycle complet. Les échecs par compétition sont comptés dans
// Stats.Errors et n'interrompent jamais le lot : chaque compétition est
// indépendante. Relancer Run sans que le temps avance est un no-op.
func (e *StatusUpdateEngine) Run(ctx context.Context) (*StatusUpdateReport, error) {
	started := time.Now()

	competitions, err := e.competitionRepo.ListForAutoStatusUpdate(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitions for status update: %w", err)
	}

	report := &StatusUpdateReport{
		Results: make([]StatusUpdateResult, 0),
		Stats:   StatusUpdateStats{Total: len(competitions)},
	}

	for _, competition := range competitions {
		now := time.Now()
		newStatus := DetermineStatus(competition, now)
		if newStatus == competition.Status {
			continue
		}
		oldStatus := competition.Status

		if err := e.competitionRepo.UpdateStatus(ctx, nil, competition.ID, newStatus); err != nil {
			report.Stats.Errors++
			e.logger.Error("failed to persist competition status transition",
				slog.Int("competition_id", competition.ID),
				slog.String("old_status", string(oldStatus)),
				slog.String("new_status", string(newStatus)),
				slog.Any("error", err))
			continue
		}
		competition.Status = newStatus
		competition.UpdatedAt = now

		result := StatusUpdateResult{
			CompetitionID:   competition.ID,
			OldStatus:       oldStatus,
			NewStatus:       newStatus,
			Reason:          TransitionReason(oldStatus, newStatus),
			Timestamp:       now,
			CompetitionName: competition.Name,
		}
		report.Results = append(report.Results, result)
		report.Stats.Updated++

		e.logger.Info("competition status updated",
			slog.Int("competition_id", competition.ID),
			slog.String("old_status", string(oldStatus)),
			slog.String("new_status", string(newStatus)),
			slog.String("reason", result.Reason))

		// Notification and broadcast are best-effort: the durable status
		// write above is the authoritative side effect.
		if e.notifier != nil {
			e.notifier.NotifyStatusChange(ctx, competition, oldStatus, newStatus)
		}
		if e.broadcaster != nil {
			e.broadcaster.SendToCompetition(competition.ID, realtime.EventStatusUpdated, result)
		}
	}

	report.Stats.Duration = time.Since(started)
	return report, nil
}
