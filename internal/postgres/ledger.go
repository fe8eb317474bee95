package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fitcomp/internal/domain"
)

// BatchUpsertLedgerRecords writes a multi-day sync in one round trip. The
// natural key (competition_id, user_id, day) makes a re-sync of the same day
// a full replacement of that row. Any failed day fails the whole batch; the
// caller must not recompute standings over a half-written window.
func (r *Repository) BatchUpsertLedgerRecords(ctx context.Context, records []domain.DailyLedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO daily_ledger (competition_id, user_id, day, move_calories, exercise_minutes, stand_hours, step_count, distance_meters, workouts_completed, points, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (competition_id, user_id, day)
		DO UPDATE SET
			move_calories = $4, exercise_minutes = $5, stand_hours = $6,
			step_count = $7, distance_meters = $8, workouts_completed = $9,
			points = $10, synced_at = $11
	`
	for _, rec := range records {
		batch.Queue(query,
			rec.CompetitionID,
			rec.UserID,
			domain.NormalizeDay(rec.Day),
			rec.MoveCalories,
			rec.ExerciseMinutes,
			rec.StandHours,
			rec.StepCount,
			rec.DistanceMeters,
			rec.WorkoutsCompleted,
			rec.Points,
			rec.SyncedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upserting ledger records: %w", err)
		}
	}
	return nil
}

// GetLedgerRange fetches every ledger row for a participant with day inside
// [start, end]. Both bounds are normalized to date-only before comparison so
// a timezone-shifted timestamp cannot fall out of the window.
func (r *Repository) GetLedgerRange(ctx context.Context, competitionID, userID string, start, end time.Time) ([]domain.DailyLedgerRecord, error) {
	query := `
		SELECT competition_id, user_id, day, move_calories, exercise_minutes, stand_hours, step_count, distance_meters, workouts_completed, points, synced_at
		FROM daily_ledger
		WHERE competition_id = $1 AND user_id = $2 AND day >= $3 AND day <= $4
		ORDER BY day ASC
	`
	rows, err := r.pool.Query(ctx, query, competitionID, userID,
		domain.NormalizeDay(start), domain.NormalizeDay(end))
	if err != nil {
		return nil, fmt.Errorf("getting ledger range: %w", err)
	}
	defer rows.Close()

	var records []domain.DailyLedgerRecord
	for rows.Next() {
		var rec domain.DailyLedgerRecord
		err := rows.Scan(
			&rec.CompetitionID,
			&rec.UserID,
			&rec.Day,
			&rec.MoveCalories,
			&rec.ExerciseMinutes,
			&rec.StandHours,
			&rec.StepCount,
			&rec.DistanceMeters,
			&rec.WorkoutsCompleted,
			&rec.Points,
			&rec.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
