package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fitcomp/internal/domain"
)

const participantColumns = `competition_id, user_id, total_points, move_calories, exercise_minutes, stand_hours, step_count, move_progress, exercise_progress, stand_progress, move_goal, exercise_goal, stand_goal, joined_at, last_sync_at`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(
		&p.CompetitionID,
		&p.UserID,
		&p.TotalPoints,
		&p.MoveCalories,
		&p.ExerciseMinutes,
		&p.StandHours,
		&p.StepCount,
		&p.MoveProgress,
		&p.ExerciseProgress,
		&p.StandProgress,
		&p.Goals.MoveCalories,
		&p.Goals.ExerciseMinutes,
		&p.Goals.StandHours,
		&p.JoinedAt,
		&p.LastSyncAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateParticipant adds a user to a competition with zeroed aggregates
func (r *Repository) CreateParticipant(ctx context.Context, competitionID, userID string) error {
	query := `
		INSERT INTO competition_participants (competition_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (competition_id, user_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, competitionID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("creating participant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAlreadyParticipant
	}
	return nil
}

// GetParticipant retrieves a participant row by its composite identity
func (r *Repository) GetParticipant(ctx context.Context, competitionID, userID string) (*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM competition_participants WHERE competition_id = $1 AND user_id = $2`
	p, err := scanParticipant(r.pool.QueryRow(ctx, query, competitionID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("getting participant: %w", err)
	}
	return p, nil
}

// ListParticipants retrieves all participants of a competition ordered by points
func (r *Repository) ListParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM competition_participants WHERE competition_id = $1 ORDER BY total_points DESC, user_id ASC`
	rows, err := r.pool.Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, nil
}

// UpdateParticipantGoals stores the ring goals reported with the latest sync
func (r *Repository) UpdateParticipantGoals(ctx context.Context, competitionID, userID string, goals domain.RingGoals) error {
	query := `
		UPDATE competition_participants
		SET move_goal = $3, exercise_goal = $4, stand_goal = $5
		WHERE competition_id = $1 AND user_id = $2
	`
	result, err := r.pool.Exec(ctx, query, competitionID, userID,
		goals.MoveCalories, goals.ExerciseMinutes, goals.StandHours)
	if err != nil {
		return fmt.Errorf("updating participant goals: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

// UpdateParticipantAggregate writes the six aggregate fields plus
// last_sync_at in a single statement. The aggregate is always a full
// recompute result, never a delta.
func (r *Repository) UpdateParticipantAggregate(ctx context.Context, competitionID, userID string, agg domain.ParticipantAggregate) error {
	query := `
		UPDATE competition_participants
		SET total_points = $3, move_calories = $4, exercise_minutes = $5,
		    stand_hours = $6, step_count = $7, move_progress = $8,
		    exercise_progress = $9, stand_progress = $10, last_sync_at = $11
		WHERE competition_id = $1 AND user_id = $2
	`
	result, err := r.pool.Exec(ctx, query,
		competitionID,
		userID,
		agg.TotalPoints,
		agg.MoveCalories,
		agg.ExerciseMinutes,
		agg.StandHours,
		agg.StepCount,
		agg.MoveProgress,
		agg.ExerciseProgress,
		agg.StandProgress,
		agg.LastSyncAt,
	)
	if err != nil {
		return fmt.Errorf("updating participant aggregate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

// DeleteParticipant removes a participant row. Ledger rows for the pair are
// removed with it so a rejoin starts clean.
func (r *Repository) DeleteParticipant(ctx context.Context, competitionID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`DELETE FROM competition_participants WHERE competition_id = $1 AND user_id = $2`,
		competitionID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting participant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM daily_ledger WHERE competition_id = $1 AND user_id = $2`,
		competitionID, userID,
	); err != nil {
		return fmt.Errorf("deleting ledger rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing participant delete: %w", err)
	}
	return nil
}

// ParticipantExists checks membership without loading the aggregate
func (r *Repository) ParticipantExists(ctx context.Context, competitionID, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM competition_participants WHERE competition_id = $1 AND user_id = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, competitionID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking participant existence: %w", err)
	}
	return exists, nil
}

// GetParticipantTotals returns user id -> total points for a competition,
// used to rebuild the standings cache.
func (r *Repository) GetParticipantTotals(ctx context.Context, competitionID string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, total_points FROM competition_participants WHERE competition_id = $1`,
		competitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting participant totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var userID string
		var points int64
		if err := rows.Scan(&userID, &points); err != nil {
			return nil, fmt.Errorf("scanning participant total: %w", err)
		}
		totals[userID] = points
	}
	return totals, nil
}
