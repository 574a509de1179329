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
	ErrCompetitionNotFound       = errors.New("competition not found")
	ErrCompetitionNameConflict   = errors.New("competition name conflict for this organizer")
	ErrCompetitionInUse          = errors.New("competition is in use (participations exist)")
	ErrCompetitionInvalidOrg     = errors.New("invalid organizer reference")
	ErrCompetitionInvalidPayload = errors.New("competition violates a database constraint")
)

type ListCompetitionsFilter struct {
	OrganizerID *int
	Status      *models.CompetitionStatus
	Limit       int
	Offset      int
}

type CompetitionRepository interface {
	Create(ctx context.Context, competition *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error)
	Update(ctx context.Context, competition *models.Competition) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.CompetitionStatus) error
	Delete(ctx context.Context, id int) error
	// ListForAutoStatusUpdate returns every competition whose status may still
	// change automatically, i.e. everything outside the terminal set.
	ListForAutoStatusUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Competition, error)
}

type postgresCompetitionRepository struct {
	db *sql.DB
}

func NewPostgresCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

func (r *postgresCompetitionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const competitionColumns = `
	id, name, description, organizer_id,
	registration_start_date, registration_deadline, start_date, end_date,
	status, max_participants, created_at, updated_at`

func scanCompetition(row interface{ Scan(...interface{}) error }, c *models.Competition) error {
	return row.Scan(
		&c.ID, &c.Name, &c.Description, &c.OrganizerID,
		&c.RegistrationStartDate, &c.RegistrationDeadline, &c.StartDate, &c.EndDate,
		&c.Status, &c.MaxParticipants, &c.CreatedAt, &c.UpdatedAt,
	)
}

func (r *postgresCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO competitions (
			name, description, organizer_id,
			registration_start_date, registration_deadline, start_date, end_date,
			status, max_participants
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		c.Name, c.Description, c.OrganizerID,
		c.RegistrationStartDate, c.RegistrationDeadline, c.StartDate, c.EndDate,
		c.Status, c.MaxParticipants,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	return r.handleCompetitionError(err)
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE id = $1`

	c := &models.Competition{}
	err := scanCompetition(executor.QueryRowContext(ctx, query, id), c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY registration_start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	competitions := make([]models.Competition, 0)
	for rows.Next() {
		var c models.Competition
		if scanErr := scanCompetition(rows, &c); scanErr != nil {
			return nil, scanErr
		}
		competitions = append(competitions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return competitions, nil
}

func (r *postgresCompetitionRepository) Update(ctx context.Context, c *models.Competition) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE competitions SET
			name = $1,
			description = $2,
			registration_start_date = $3,
			registration_deadline = $4,
			start_date = $5,
			end_date = $6,
			status = $7,
			max_participants = $8,
			updated_at = NOW()
		WHERE id = $9`

	result, err := executor.ExecContext(ctx, query,
		c.Name, c.Description,
		c.RegistrationStartDate, c.RegistrationDeadline, c.StartDate, c.EndDate,
		c.Status, c.MaxParticipants,
		c.ID,
	)
	if err != nil {
		return r.handleCompetitionError(err)
	}

	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.CompetitionStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE competitions SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	query := `DELETE FROM competitions WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) ListForAutoStatusUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Competition, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + competitionColumns + `
		FROM competitions
		WHERE status NOT IN ($1, $2)`

	rows, err := executor.QueryContext(ctx, query, models.StatusCompleted, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitions for auto status update: %w", err)
	}
	defer rows.Close()

	var competitions []*models.Competition
	for rows.Next() {
		var c models.Competition
		if scanErr := scanCompetition(rows, &c); scanErr != nil {
			return nil, fmt.Errorf("failed to scan competition for auto status update: %w", scanErr)
		}
		competitions = append(competitions, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during competition rows iteration for auto status update: %w", err)
	}
	return competitions, nil
}

func (r *postgresCompetitionRepository) handleCompetitionError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "competitions_organizer_id_name_key" {
				return ErrCompetitionNameConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "competitions_organizer_id_fkey":
				return ErrCompetitionInvalidOrg
			default:
				return ErrCompetitionInUse
			}
		case "23514":
			return ErrCompetitionInvalidPayload
		}
	}
	return err
}
