package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sportcomp/competition-system/models"
)

var (
	ErrParticipationNotFound           = errors.New("participation not found")
	ErrParticipationConflict           = errors.New("participation conflict: user already registered for this competition")
	ErrParticipationUserInvalid        = errors.New("participation user conflict or invalid")
	ErrParticipationCompetitionInvalid = errors.New("participation competition conflict or invalid")
)

type ParticipationRepository interface {
	Create(ctx context.Context, p *models.Participation) error
	UpdateStatus(ctx context.Context, id int, status models.ParticipationStatus) error
	FindByID(ctx context.Context, id int) (*models.Participation, error)
	FindByUserAndCompetition(ctx context.Context, userID, competitionID int) (*models.Participation, error)
	ListByCompetition(ctx context.Context, competitionID int, statusFilter *models.ParticipationStatus) ([]*models.Participation, error)
	Delete(ctx context.Context, id int) error
}

type postgresParticipationRepository struct {
	db *sql.DB
}

func NewPostgresParticipationRepository(db *sql.DB) ParticipationRepository {
	return &postgresParticipationRepository{db: db}
}

func (r *postgresParticipationRepository) Create(ctx context.Context, p *models.Participation) error {
	query := `
		INSERT INTO participations (competition_id, participant_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.CompetitionID,
		p.ParticipantID,
		p.Status,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrParticipationConflict
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "participations_participant_id_fkey":
					return ErrParticipationUserInvalid
				case "participations_competition_id_fkey":
					return ErrParticipationCompetitionInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participation: %w", err)
	}
	return nil
}

func (r *postgresParticipationRepository) UpdateStatus(ctx context.Context, id int, status models.ParticipationStatus) error {
	query := `UPDATE participations SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participation status: %w", err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipationRepository) FindByID(ctx context.Context, id int) (*models.Participation, error) {
	query := `
		SELECT id, competition_id, participant_id, status, created_at
		FROM participations
		WHERE id = $1`

	p := &models.Participation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.CompetitionID, &p.ParticipantID, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipationRepository) FindByUserAndCompetition(ctx context.Context, userID, competitionID int) (*models.Participation, error) {
	query := `
		SELECT id, competition_id, participant_id, status, created_at
		FROM participations
		WHERE participant_id = $1 AND competition_id = $2`

	p := &models.Participation{}
	err := r.db.QueryRowContext(ctx, query, userID, competitionID).Scan(
		&p.ID, &p.CompetitionID, &p.ParticipantID, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipationRepository) ListByCompetition(ctx context.Context, competitionID int, statusFilter *models.ParticipationStatus) ([]*models.Participation, error) {
	query := `
		SELECT id, competition_id, participant_id, status, created_at
		FROM participations
		WHERE competition_id = $1`
	args := []interface{}{competitionID}

	if statusFilter != nil {
		query += ` AND status = $2`
		args = append(args, *statusFilter)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}
	defer rows.Close()

	participations := make([]*models.Participation, 0)
	for rows.Next() {
		var p models.Participation
		if scanErr := rows.Scan(&p.ID, &p.CompetitionID, &p.ParticipantID, &p.Status, &p.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		participations = append(participations, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return participations, nil
}

func (r *postgresParticipationRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM participations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participation: %w", err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}
