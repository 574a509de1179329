package services

import "errors"

// Erreurs communes, partagées entre services et mappées vers HTTP côté handlers.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation et règles métier
	ErrValidationFailed                   = errors.New("validation failed")
	ErrCompetitionNameRequired            = errors.New("competition name is required")
	ErrCompetitionDatesRequired           = errors.New("competition registration dates are required")
	ErrCompetitionInvalidRegWindow        = errors.New("competition registration deadline must be after registration start date")
	ErrCompetitionInvalidDateRange        = errors.New("competition end date must be after start date")
	ErrCompetitionInvalidStartDate        = errors.New("competition start date must be after the registration deadline")
	ErrCompetitionInvalidCapacity         = errors.New("competition max participants must be positive")
	ErrCompetitionInvalidStatusTransition = errors.New("invalid competition status transition")
	ErrRegistrationNotOpen                = errors.New("competition registration is not open")
	ErrCompetitionFull                    = errors.New("competition registration is full")
	ErrParticipationInvalidStatus         = errors.New("invalid participation status provided")

	// Conflits
	ErrCompetitionNameConflict = errors.New("competition name already exists for this organizer")
	ErrRegistrationConflict    = errors.New("user is already registered for this competition")

	// Autorisation
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Entités
	ErrCompetitionNotFound   = errors.New("competition not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrUserNotFound          = errors.New("user not found")
)
