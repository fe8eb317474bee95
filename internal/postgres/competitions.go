package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fitcomp/internal/domain"
)

const competitionColumns = `id, name, description, start_date, end_date, type, status, scoring_type, scoring_config, is_public, creator_id, created_at, updated_at`

func scanCompetition(row pgx.Row) (*domain.Competition, error) {
	var c domain.Competition
	var description *string
	var configJSON []byte
	err := row.Scan(
		&c.ID,
		&c.Name,
		&description,
		&c.StartDate,
		&c.EndDate,
		&c.Type,
		&c.Status,
		&c.ScoringType,
		&configJSON,
		&c.IsPublic,
		&c.CreatorID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		c.Description = *description
	}
	if len(configJSON) > 0 {
		var wc domain.WorkoutConfig
		if err := json.Unmarshal(configJSON, &wc); err != nil {
			return nil, fmt.Errorf("decoding scoring config: %w", err)
		}
		c.Workout = &wc
	}
	return &c, nil
}

// CreateCompetition inserts a new competition record
func (r *Repository) CreateCompetition(ctx context.Context, c *domain.Competition) error {
	var configJSON []byte
	var err error
	if c.Workout != nil {
		configJSON, err = json.Marshal(c.Workout)
		if err != nil {
			return fmt.Errorf("marshaling scoring config: %w", err)
		}
	}

	query := `
		INSERT INTO competitions (id, name, description, start_date, end_date, type, status, scoring_type, scoring_config, is_public, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	now := time.Now()
	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Description,
		c.StartDate,
		c.EndDate,
		string(c.Type),
		string(c.Status),
		string(c.ScoringType),
		configJSON,
		c.IsPublic,
		c.CreatorID,
		now,
	)
	if err != nil {
		return fmt.Errorf("creating competition: %w", err)
	}
	return nil
}

// GetCompetition retrieves a competition by ID
func (r *Repository) GetCompetition(ctx context.Context, competitionID string) (*domain.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1`
	c, err := scanCompetition(r.pool.QueryRow(ctx, query, competitionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("getting competition: %w", err)
	}
	return c, nil
}

// ListCompetitionsForUser retrieves all competitions a user participates in
func (r *Repository) ListCompetitionsForUser(ctx context.Context, userID string) ([]domain.Competition, error) {
	query := `
		SELECT ` + competitionColumns + `
		FROM competitions c
		JOIN competition_participants p ON p.competition_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.start_date DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing competitions: %w", err)
	}
	defer rows.Close()

	var competitions []domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning competition: %w", err)
		}
		competitions = append(competitions, *c)
	}
	return competitions, nil
}

// ListPublicCompetitions retrieves joinable public competitions
func (r *Repository) ListPublicCompetitions(ctx context.Context) ([]domain.Competition, error) {
	query := `
		SELECT ` + competitionColumns + `
		FROM competitions
		WHERE is_public = TRUE AND status <> 'completed'
		ORDER BY start_date ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing public competitions: %w", err)
	}
	defer rows.Close()

	var competitions []domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning competition: %w", err)
		}
		competitions = append(competitions, *c)
	}
	return competitions, nil
}

// UpdateCompetition persists mutable competition fields
func (r *Repository) UpdateCompetition(ctx context.Context, c *domain.Competition) error {
	query := `
		UPDATE competitions
		SET name = $2, description = $3, start_date = $4, end_date = $5,
		    type = $6, status = $7, scoring_type = $8, is_public = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Description,
		c.StartDate,
		c.EndDate,
		string(c.Type),
		string(c.Status),
		string(c.ScoringType),
		c.IsPublic,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("updating competition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCompetitionNotFound
	}
	return nil
}

// DeleteCompetition removes a competition; participants, ledger rows and
// invitations cascade.
func (r *Repository) DeleteCompetition(ctx context.Context, competitionID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM competitions WHERE id = $1`, competitionID)
	if err != nil {
		return fmt.Errorf("deleting competition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCompetitionNotFound
	}
	return nil
}

// AdvanceStatuses moves stored competition statuses forward based on the
// current date: upcoming competitions that have started become active, and
// active competitions past their end date become completed. Transitions are
// one-way; a completed competition never reopens.
func (r *Repository) AdvanceStatuses(ctx context.Context, today time.Time) (int64, error) {
	day := domain.NormalizeDay(today)

	activated, err := r.pool.Exec(ctx,
		`UPDATE competitions SET status = 'active', updated_at = NOW() WHERE status = 'upcoming' AND start_date <= $1`,
		day,
	)
	if err != nil {
		return 0, fmt.Errorf("activating competitions: %w", err)
	}

	completed, err := r.pool.Exec(ctx,
		`UPDATE competitions SET status = 'completed', updated_at = NOW() WHERE status IN ('upcoming', 'active') AND end_date < $1`,
		day,
	)
	if err != nil {
		return 0, fmt.Errorf("completing competitions: %w", err)
	}

	return activated.RowsAffected() + completed.RowsAffected(), nil
}

// ListCompetitionIDsByStatus returns competition ids with the given status
func (r *Repository) ListCompetitionIDsByStatus(ctx context.Context, status domain.CompetitionStatus) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM competitions WHERE status = $1`, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing competitions by status: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning competition id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateInvitation inserts a pending invitation. The caller is expected to
// have checked for an existing pending invite first; the small race window
// is accepted since a duplicate invite is a nuisance, not a correctness bug.
func (r *Repository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (id, competition_id, inviter_id, invitee_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		inv.ID, inv.CompetitionID, inv.InviterID, inv.InviteeID, inv.Status, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating invitation: %w", err)
	}
	return nil
}

// HasPendingInvitation checks for an existing pending invite to the same user
func (r *Repository) HasPendingInvitation(ctx context.Context, competitionID, inviteeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM invitations WHERE competition_id = $1 AND invitee_id = $2 AND status = 'pending')`
	var exists bool
	err := r.pool.QueryRow(ctx, query, competitionID, inviteeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking pending invitation: %w", err)
	}
	return exists, nil
}

// GetInvitation retrieves an invitation by ID
func (r *Repository) GetInvitation(ctx context.Context, invitationID string) (*domain.Invitation, error) {
	query := `SELECT id, competition_id, inviter_id, invitee_id, status, created_at FROM invitations WHERE id = $1`
	var inv domain.Invitation
	err := r.pool.QueryRow(ctx, query, invitationID).Scan(
		&inv.ID, &inv.CompetitionID, &inv.InviterID, &inv.InviteeID, &inv.Status, &inv.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	return &inv, nil
}

// UpdateInvitationStatus marks an invitation accepted or declined
func (r *Repository) UpdateInvitationStatus(ctx context.Context, invitationID, status string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE invitations SET status = $2 WHERE id = $1 AND status = 'pending'`,
		invitationID, status,
	)
	if err != nil {
		return fmt.Errorf("updating invitation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvitationNotFound
	}
	return nil
}

// GetProfile retrieves the authoritative server-side profile for a user
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `SELECT user_id, username, tier, created_at FROM profiles WHERE user_id = $1`
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Username, &p.Tier, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or updates a user profile
func (r *Repository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, username, tier, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET username = $2, tier = $3
	`
	_, err := r.pool.Exec(ctx, query, p.UserID, p.Username, string(p.Tier), time.Now())
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}
