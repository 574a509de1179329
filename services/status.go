package services

import (
	"fmt"
	"time"

	"github.com/sportcomp/competition-system/models"
)

// DetermineStatus calcule le statut qu'une compétition devrait avoir à
// l'instant donné. Fonction pure : aucune écriture, aucun effet de bord.
//
// Les règles s'appliquent dans l'ordre :
//  1. DRAFT ne bouge jamais automatiquement (publication manuelle).
//  2. CANCELLED et COMPLETED sont terminaux.
//  3. Avant la date limite d'inscription → OPEN. Une compétition publiée dont
//     les inscriptions n'ont pas encore commencé est aussi rapportée OPEN ;
//     les deux états sont volontairement confondus dans ce modèle.
//  4. Après la date limite, avant la date de début (ou sans date de début) → CLOSED.
//  5. Date de début atteinte → IN_PROGRESS, puis COMPLETED une fois la date
//     de fin dépassée (IN_PROGRESS indéfiniment si aucune date de fin).
func DetermineStatus(c *models.Competition, now time.Time) models.CompetitionStatus {
	switch c.Status {
	case models.StatusDraft, models.StatusCancelled, models.StatusCompleted:
		return c.Status
	}

	// Both registration dates are required for a meaningful automatic
	// transition; without them, keep whatever status is already set.
	if c.RegistrationStartDate.IsZero() || c.RegistrationDeadline.IsZero() {
		return c.Status
	}

	if now.Before(c.RegistrationStartDate) {
		return models.StatusOpen
	}
	if !now.After(c.RegistrationDeadline) {
		return models.StatusOpen
	}

	if c.StartDate == nil || now.Before(*c.StartDate) {
		return models.StatusClosed
	}

	if c.EndDate != nil && now.After(*c.EndDate) {
		return models.StatusCompleted
	}
	return models.StatusInProgress
}

type statusPair struct {
	From models.CompetitionStatus
	To   models.CompetitionStatus
}

const defaultTransitionReason = "Mise à jour automatique basée sur les dates"

var transitionReasons = map[statusPair]string{
	{models.StatusOpen, models.StatusClosed}:          "Clôture automatique des inscriptions : date limite dépassée",
	{models.StatusOpen, models.StatusInProgress}:      "Début automatique de la compétition : date de début atteinte",
	{models.StatusClosed, models.StatusInProgress}:    "Début automatique de la compétition : date de début atteinte",
	{models.StatusOpen, models.StatusCompleted}:       "Fin automatique de la compétition : date de fin dépassée",
	{models.StatusClosed, models.StatusCompleted}:     "Fin automatique de la compétition : date de fin dépassée",
	{models.StatusInProgress, models.StatusCompleted}: "Fin automatique de la compétition : date de fin dépassée",
	{models.StatusDraft, models.StatusOpen}:           "Publication manuelle de la compétition",
	{models.StatusOpen, models.StatusCancelled}:       "Annulation de la compétition par l'organisateur",
	{models.StatusClosed, models.StatusCancelled}:     "Annulation de la compétition par l'organisateur",
	{models.StatusInProgress, models.StatusCancelled}: "Annulation de la compétition par l'organisateur",
}

// TransitionReason returns a human-readable reason for a status transition.
func TransitionReason(from, to models.CompetitionStatus) string {
	if reason, ok := transitionReasons[statusPair{From: from, To: to}]; ok {
		return reason
	}
	return defaultTransitionReason
}

type notificationTemplate struct {
	Title   string
	Message string // fmt template; %s receives the competition name
}

var statusChangeTemplates = map[models.CompetitionStatus]notificationTemplate{
	models.StatusOpen: {
		Title:   "Inscriptions ouvertes",
		Message: "Les inscriptions pour la compétition « %s » sont ouvertes.",
	},
	models.StatusClosed: {
		Title:   "Inscriptions fermées",
		Message: "Les inscriptions pour la compétition « %s » sont désormais fermées.",
	},
	models.StatusInProgress: {
		Title:   "Compétition commencée",
		Message: "La compétition « %s » vient de commencer.",
	},
	models.StatusCompleted: {
		Title:   "Compétition terminée",
		Message: "La compétition « %s » est maintenant terminée.",
	},
	models.StatusCancelled: {
		Title:   "Compétition annulée",
		Message: "La compétition « %s » a été annulée.",
	},
}

// StatusChangeMessage returns the notification title and message for a
// transition, keyed on the new status, with a generic fallback.
func StatusChangeMessage(to models.CompetitionStatus, competitionName string) (title, message string) {
	tpl, ok := statusChangeTemplates[to]
	if !ok {
		return "Statut mis à jour",
			fmt.Sprintf("Le statut de la compétition « %s » a été mis à jour.", competitionName)
	}
	return tpl.Title, fmt.Sprintf(tpl.Message, competitionName)
}
